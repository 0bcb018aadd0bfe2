package adminrpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

type fakeFlagStore struct {
	flags map[string]*model.Flag
}

func newFakeFlagStore() *fakeFlagStore {
	return &fakeFlagStore{flags: make(map[string]*model.Flag)}
}

func flagKey(name, backend string) string { return backend + "/" + name }

func (f *fakeFlagStore) Get(ctx context.Context, name, backend string) (*model.Flag, error) {
	flag, ok := f.flags[flagKey(name, backend)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return flag, nil
}

func (f *fakeFlagStore) Set(ctx context.Context, name, backend string, value *string, now int64) error {
	f.flags[flagKey(name, backend)] = &model.Flag{Name: name, Backend: backend, Value: value, UpdatedAt: now}
	return nil
}

func (f *fakeFlagStore) List(backend string) ([]*model.Flag, error) {
	var out []*model.Flag
	for _, flag := range f.flags {
		if flag.Backend == backend {
			out = append(out, flag)
		}
	}
	return out, nil
}

type fakeManifestFetcher struct {
	yaml []byte
	err  error
}

func (f *fakeManifestFetcher) FetchProjectYAML(repoURL, commit string) ([]byte, error) {
	return f.yaml, f.err
}

type fakeWorkspaceDiffer struct {
	jobs []*model.Job
	err  error
	got  model.CreateRequest
}

func (f *fakeWorkspaceDiffer) PreviewJobs(req model.CreateRequest) ([]*model.Job, error) {
	f.got = req
	return f.jobs, f.err
}

type fakeJobLister struct {
	jobs []*model.Job
	err  error
}

func (f *fakeJobLister) FindJobs(conds ...store.Cond) ([]*model.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Job
	for _, j := range f.jobs {
		if matchesJob(j, conds) {
			out = append(out, j)
		}
	}
	return out, nil
}

func matchesJob(j *model.Job, conds []store.Cond) bool {
	for _, c := range conds {
		switch c.Column {
		case "state":
			values, _ := c.Value.([]any)
			ok := false
			for _, v := range values {
				if string(j.State) == v.(string) {
					ok = true
				}
			}
			if !ok {
				return false
			}
		case "backend":
			if j.Backend != c.Value.(string) {
				return false
			}
		}
	}
	return true
}

type fakeTaskLister struct {
	tasks []*model.Task
}

func (f *fakeTaskLister) FindTasks(conds ...store.Cond) ([]*model.Task, error) {
	var out []*model.Task
	for _, t := range f.tasks {
		ok := true
		for _, c := range conds {
			switch c.Column {
			case "active":
				if t.Active != c.Value.(bool) {
					ok = false
				}
			case "backend":
				if t.Backend != c.Value.(string) {
					ok = false
				}
			}
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeCounter struct{ n int }

func (f fakeCounter) ActiveTaskCount() int { return f.n }

func TestControllerStatusReportsActiveJobsAndTasks(t *testing.T) {
	s := &Server{
		Role:    "controller",
		Version: "test",
		Jobs: &fakeJobLister{jobs: []*model.Job{
			{ID: "a", State: model.StatePending},
			{ID: "b", State: model.StateRunning},
			{ID: "c", State: model.StateSucceeded},
		}},
		Tasks: &fakeTaskLister{tasks: []*model.Task{
			{ID: "t1", Active: true},
			{ID: "t2", Active: false},
		}},
	}

	resp, err := s.Status(context.Background(), &StatusRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Healthy)
	assert.Equal(t, "controller", resp.Role)
	assert.EqualValues(t, 2, resp.ActiveJobs)
	assert.EqualValues(t, 1, resp.ActiveTasks)
}

func TestAgentStatusUsesCounter(t *testing.T) {
	s := &Server{Role: "agent", Version: "test", Counter: fakeCounter{n: 3}}

	resp, err := s.Status(context.Background(), &StatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "agent", resp.Role)
	assert.EqualValues(t, 3, resp.ActiveTasks)
	assert.EqualValues(t, 0, resp.ActiveJobs)
}

func TestListActiveJobsFiltersByBackend(t *testing.T) {
	s := &Server{
		Jobs: &fakeJobLister{jobs: []*model.Job{
			{ID: "a", Backend: "tpp", State: model.StatePending},
			{ID: "b", Backend: "other", State: model.StateRunning},
		}},
	}

	resp, err := s.ListActiveJobs(context.Background(), &ListActiveJobsRequest{Backend: "tpp"})
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "a", resp.Jobs[0].ID)
}

func TestListActiveJobsOnAgentServerIsEmpty(t *testing.T) {
	s := &Server{Role: "agent"}

	resp, err := s.ListActiveJobs(context.Background(), &ListActiveJobsRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Jobs)
}

func TestListActiveTasksFiltersActiveAndBackend(t *testing.T) {
	s := &Server{
		Tasks: &fakeTaskLister{tasks: []*model.Task{
			{ID: "t1", Backend: "tpp", Active: true},
			{ID: "t2", Backend: "tpp", Active: false},
			{ID: "t3", Backend: "other", Active: true},
		}},
	}

	resp, err := s.ListActiveTasks(context.Background(), &ListActiveTasksRequest{Backend: "tpp"})
	require.NoError(t, err)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "t1", resp.Tasks[0].ID)
}

func TestShutdownDelegatesToFunc(t *testing.T) {
	called := false
	s := &Server{
		Shutdown: func(ctx context.Context, waitForJobs bool, timeout int32) (int32, error) {
			called = true
			assert.True(t, waitForJobs)
			assert.EqualValues(t, 30, timeout)
			return 2, nil
		},
	}

	resp, err := s.Shutdown(context.Background(), &ShutdownRequest{WaitForJobs: true, TimeoutSeconds: 30})
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, resp.Success)
	assert.EqualValues(t, 2, resp.JobsStopped)
}

func TestShutdownWithoutFuncReportsSuccess(t *testing.T) {
	s := &Server{}

	resp, err := s.Shutdown(context.Background(), &ShutdownRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestShutdownPropagatesError(t *testing.T) {
	s := &Server{
		Shutdown: func(ctx context.Context, waitForJobs bool, timeout int32) (int32, error) {
			return 0, errors.New("boom")
		},
	}

	resp, err := s.Shutdown(context.Background(), &ShutdownRequest{})
	require.Error(t, err)
	assert.False(t, resp.Success)
}

func TestGetFlagReturnsNilWhenUnset(t *testing.T) {
	s := &Server{Flags: newFakeFlagStore()}

	resp, err := s.GetFlag(context.Background(), &GetFlagRequest{Name: "paused", Backend: "tpp"})
	require.NoError(t, err)
	assert.Nil(t, resp.Flag)
}

func TestSetFlagThenGetFlagRoundTrips(t *testing.T) {
	s := &Server{Flags: newFakeFlagStore()}
	on := "true"

	_, err := s.SetFlag(context.Background(), &SetFlagRequest{Name: "paused", Backend: "tpp", Value: &on})
	require.NoError(t, err)

	resp, err := s.GetFlag(context.Background(), &GetFlagRequest{Name: "paused", Backend: "tpp"})
	require.NoError(t, err)
	require.NotNil(t, resp.Flag)
	assert.Equal(t, "paused", resp.Flag.Name)
	assert.Equal(t, "true", *resp.Flag.Value)
}

func TestListFlagsScopesToBackend(t *testing.T) {
	store := newFakeFlagStore()
	on := "true"
	require.NoError(t, store.Set(context.Background(), "paused", "tpp", &on, 1))
	require.NoError(t, store.Set(context.Background(), "paused", "other", &on, 1))
	s := &Server{Flags: store}

	resp, err := s.ListFlags(context.Background(), &ListFlagsRequest{Backend: "tpp"})
	require.NoError(t, err)
	require.Len(t, resp.Flags, 1)
	assert.Equal(t, "tpp", resp.Flags[0].Backend)
}

func TestShowManifestReturnsYAML(t *testing.T) {
	s := &Server{Manifest: &fakeManifestFetcher{yaml: []byte("actions:\n  generate_study_population: {}\n")}}

	resp, err := s.ShowManifest(context.Background(), &ShowManifestRequest{RepoURL: "https://github.com/org/repo", Commit: "abc123"})
	require.NoError(t, err)
	assert.Contains(t, resp.YAML, "generate_study_population")
}

func TestDiffWorkspaceTranslatesRequestAndJobs(t *testing.T) {
	differ := &fakeWorkspaceDiffer{jobs: []*model.Job{
		{ID: "j1", RapID: "rap1", Backend: "tpp", Workspace: "study1", Action: "a", State: model.StatePending},
	}}
	s := &Server{Diff: differ}

	resp, err := s.DiffWorkspace(context.Background(), &DiffWorkspaceRequest{
		Backend:          "tpp",
		Workspace:        "study1",
		RepoURL:          "https://github.com/org/repo",
		Commit:           "abc123",
		Branch:           "main",
		DatabaseName:     "default",
		RequestedActions: []string{"run_all"},
		CodelistsOK:      true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "j1", resp.Jobs[0].ID)
	assert.Equal(t, "tpp", differ.got.Backend)
	assert.Equal(t, model.DatabaseName("default"), differ.got.DatabaseName)
	assert.True(t, differ.got.CodelistsOK)
}

func TestPrepareForRebootPausesBackendsAndReportsNoJobsRemaining(t *testing.T) {
	s := &Server{
		Flags:    newFakeFlagStore(),
		Backends: []string{"tpp", "emis"},
		Jobs:     &fakeJobLister{},
	}

	resp, err := s.PrepareForReboot(context.Background(), &PrepareForRebootRequest{TimeoutSeconds: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tpp", "emis"}, resp.PausedBackends)
	assert.EqualValues(t, 0, resp.JobsRemaining)
	assert.False(t, resp.TimedOut)

	flagStore := s.Flags.(*fakeFlagStore)
	flag, err := flagStore.Get(context.Background(), model.FlagPaused, "tpp")
	require.NoError(t, err)
	assert.Equal(t, model.FlagValueTrue, *flag.Value)
}

func TestPrepareForRebootTimesOutWithRunningJobs(t *testing.T) {
	clock := time.Now()
	s := &Server{
		Flags:    newFakeFlagStore(),
		Backends: []string{"tpp"},
		Jobs: &fakeJobLister{jobs: []*model.Job{
			{ID: "j1", State: model.StateRunning},
		}},
		Now: func() time.Time {
			t := clock
			clock = clock.Add(time.Second)
			return t
		},
	}

	resp, err := s.PrepareForReboot(context.Background(), &PrepareForRebootRequest{TimeoutSeconds: 1})
	require.NoError(t, err)
	assert.True(t, resp.TimedOut)
	assert.EqualValues(t, 1, resp.JobsRemaining)
}
