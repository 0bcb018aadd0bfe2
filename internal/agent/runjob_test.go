package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/executor"
	"github.com/RevCBH/ragweb/internal/model"
)

func TestHandleRunJobUnknownPreparesAndPostsPreparedStage(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)

	require.NoError(t, a.handleRunJob(context.Background(), task))

	require.Len(t, client.updates, 2)
	require.Equal(t, string(executor.StatePreparing), client.updates[0].Stage)
	require.False(t, client.updates[0].Complete)
	require.Equal(t, string(executor.StatePrepared), client.updates[1].Stage)
	require.False(t, client.updates[1].Complete)
}

func TestHandleRunJobPreparedInjectsDBSecretsOnExecute(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	secrets := fakeSecrets{env: map[string]string{"DATABASE_URL": "postgres://secret"}}
	a := newTestAgent(client, factory, secrets)

	dbName := model.DatabaseDefault
	def := testDef("job-1")
	def.AllowDatabaseAccess = true
	def.DatabaseName = &dbName
	task := runJobTask(t, def)

	fe := &fakeExecutor{state: executor.StatePrepared}
	a.executors[def.ID] = fe

	require.NoError(t, a.handleRunJob(context.Background(), task))

	require.Equal(t, 1, fe.executeCalls)
	require.Equal(t, "postgres://secret", fe.executeEnv["DATABASE_URL"])
	require.Equal(t, string(executor.StateExecuting), client.last().Stage)
}

func TestHandleRunJobExecutingPostsHeartbeatOnTransitionToExecuted(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	fe := &fakeExecutor{state: executor.StateExecuting, advanceTo: executor.StateExecuted}
	a.executors[def.ID] = fe

	require.NoError(t, a.handleRunJob(context.Background(), task))

	require.Equal(t, string(executor.StateExecuted), client.last().Stage)
	require.False(t, client.last().Complete)
}

func TestHandleRunJobExecutedFinalizesAndPostsRedactedResults(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	fe := &fakeExecutor{
		state: executor.StateExecuted,
		finalizeResults: model.JobTaskResults{
			ExitCode:          0,
			Outputs:           map[string]string{"table": "table.csv"},
			UnmatchedPatterns: []string{"missing-*.csv"},
		},
	}
	a.executors[def.ID] = fe

	require.NoError(t, a.handleRunJob(context.Background(), task))

	require.Equal(t, 1, fe.cleanupCalls)
	require.False(t, fe.finalizeCancelled)

	last := client.last()
	require.Equal(t, string(executor.StateFinalized), last.Stage)
	require.True(t, last.Complete)
	require.NotNil(t, last.Results)

	var results model.JobTaskResults
	require.NoError(t, json.Unmarshal([]byte(*last.Results), &results))
	require.Nil(t, results.Outputs)
	require.True(t, results.HasUnmatchedPatterns)

	_, stillTracked := a.executors[def.ID]
	require.False(t, stillTracked)
}

func TestHandleRunJobFinalizedPostsComplete(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	a.executors[def.ID] = &fakeExecutor{state: executor.StateFinalized}

	require.NoError(t, a.handleRunJob(context.Background(), task))

	last := client.last()
	require.Equal(t, string(executor.StateFinalized), last.Stage)
	require.True(t, last.Complete)
}

func TestHandleRunJobErrorPostsCompleteWithErrorMessage(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	a.executors[def.ID] = &fakeExecutor{state: executor.StateError}

	require.NoError(t, a.handleRunJob(context.Background(), task))

	last := client.last()
	require.Equal(t, string(executor.StateError), last.Stage)
	require.True(t, last.Complete)

	var results model.JobTaskResults
	require.NoError(t, json.Unmarshal([]byte(*last.Results), &results))
	require.NotNil(t, results.Error)
}

func TestHandleRunJobInvalidDefinitionReportsErrorComplete(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	task := agentrpc.TaskDTO{ID: "bad-task", Backend: "tpp", Type: string(model.TaskRunJob), Definition: "not json"}
	err := a.handleRunJob(context.Background(), task)
	require.Error(t, err)

	last := client.last()
	require.True(t, last.Complete)
	require.Equal(t, string(executor.StateError), last.Stage)
}
