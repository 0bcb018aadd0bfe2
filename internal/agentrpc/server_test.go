package agentrpc

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

type fakeFlags struct {
	touched map[string]time.Time
	mode    map[string]*string
}

func newFakeFlags() *fakeFlags {
	return &fakeFlags{touched: map[string]time.Time{}, mode: map[string]*string{}}
}

func (f *fakeFlags) TouchLastSeenAt(ctx context.Context, backend string, now time.Time) error {
	f.touched[backend] = now
	return nil
}

func (f *fakeFlags) Set(ctx context.Context, name, backend string, value *string, now int64) error {
	if name == model.FlagMode {
		f.mode[backend] = value
	}
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *fakeFlags, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	fl := newFakeFlags()
	srv := NewServer(s, fl, "test-secret", []string{"tpp"}, func() time.Time { return time.Unix(1700000000, 0) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	srv.Register(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	token, err := IssueToken("test-secret", []string{"tpp"}, time.Hour)
	require.NoError(t, err)

	return ts, s, fl, token
}

func TestClientListTasksOrdersDBStatusFirstAndTouchesLastSeenAt(t *testing.T) {
	ts, s, fl, token := newTestServer(t)

	require.NoError(t, s.InsertTask(&model.Task{ID: "job-1-001", Backend: "tpp", Type: model.TaskRunJob, Definition: "{}", Active: true, CreatedAt: 1}))
	require.NoError(t, s.InsertTask(&model.Task{ID: "job-1-dbstatus-1", Backend: "tpp", Type: model.TaskDBStatus, Definition: "{}", Active: true, CreatedAt: 2}))

	c := NewClient(ts.URL, "tpp", token)
	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, model.TaskDBStatus, model.TaskType(tasks[0].Type))
	require.Equal(t, model.TaskRunJob, model.TaskType(tasks[1].Type))

	require.Contains(t, fl.touched, "tpp")
}

func TestClientListTasksSkipsInactiveTasks(t *testing.T) {
	ts, s, _, token := newTestServer(t)

	require.NoError(t, s.InsertTask(&model.Task{ID: "job-1-001", Backend: "tpp", Type: model.TaskRunJob, Definition: "{}", Active: false, CreatedAt: 1}))

	c := NewClient(ts.URL, "tpp", token)
	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestClientListTasksRejectsBadToken(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	c := NewClient(ts.URL, "tpp", "garbage")
	_, err := c.ListTasks(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientListTasksRejectsUnknownBackend(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	token, err := IssueToken("test-secret", []string{"unknown"}, time.Hour)
	require.NoError(t, err)

	c := NewClient(ts.URL, "unknown", token)
	_, err = c.ListTasks(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthorized, "an unrecognised backend is a 404, not an auth failure")
}

func TestClientUpdateTaskMarksCompleteAndInactive(t *testing.T) {
	ts, s, _, token := newTestServer(t)

	require.NoError(t, s.InsertTask(&model.Task{ID: "job-1-001", Backend: "tpp", Type: model.TaskRunJob, Definition: "{}", Active: true, CreatedAt: 1}))

	c := NewClient(ts.URL, "tpp", token)
	results := `{"exit_code":0}`
	err := c.UpdateTask(context.Background(), TaskUpdateRequest{
		TaskID:   "job-1-001",
		Stage:    "finalized",
		Results:  &results,
		Complete: true,
	})
	require.NoError(t, err)

	task, err := s.GetTask("job-1-001")
	require.NoError(t, err)
	require.False(t, task.Active)
	require.NotNil(t, task.FinishedAt)
	require.Equal(t, "finalized", task.AgentStage)
	require.Equal(t, results, task.AgentResults)
}

func TestClientUpdateTaskDBStatusCompletionCommitsMode(t *testing.T) {
	ts, s, fl, token := newTestServer(t)

	require.NoError(t, s.InsertTask(&model.Task{ID: "job-1-dbstatus-1", Backend: "tpp", Type: model.TaskDBStatus, Definition: "{}", Active: true, CreatedAt: 1}))

	c := NewClient(ts.URL, "tpp", token)
	results := `{"status":"db-maintenance"}`
	err := c.UpdateTask(context.Background(), TaskUpdateRequest{
		TaskID:   "job-1-dbstatus-1",
		Stage:    "finalized",
		Results:  &results,
		Complete: true,
	})
	require.NoError(t, err)

	require.Contains(t, fl.mode, "tpp")
	require.NotNil(t, fl.mode["tpp"])
	require.Equal(t, model.FlagValueModeDBMaint, *fl.mode["tpp"])
}

func TestClientUpdateTaskDBStatusCompletionClearsModeOnNormalStatus(t *testing.T) {
	ts, s, fl, token := newTestServer(t)

	require.NoError(t, s.InsertTask(&model.Task{ID: "job-1-dbstatus-1", Backend: "tpp", Type: model.TaskDBStatus, Definition: "{}", Active: true, CreatedAt: 1}))

	c := NewClient(ts.URL, "tpp", token)
	results := `{"status":"ok"}`
	err := c.UpdateTask(context.Background(), TaskUpdateRequest{
		TaskID:   "job-1-dbstatus-1",
		Stage:    "finalized",
		Results:  &results,
		Complete: true,
	})
	require.NoError(t, err)

	require.Contains(t, fl.mode, "tpp")
	require.Nil(t, fl.mode["tpp"])
}

func TestClientUpdateTaskUnknownTaskFails(t *testing.T) {
	ts, _, _, token := newTestServer(t)

	c := NewClient(ts.URL, "tpp", token)
	err := c.UpdateTask(context.Background(), TaskUpdateRequest{TaskID: "does-not-exist", Stage: "running"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthorized, "an unknown task is a 500, not an auth failure")
}
