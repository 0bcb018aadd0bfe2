package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/executor"
)

func TestHandleCancelJobFinalizedJustPostsComplete(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	fe := &fakeExecutor{state: executor.StateFinalized}
	a.executors[def.ID] = fe

	require.NoError(t, a.handleCancelJob(context.Background(), task))

	require.Len(t, client.updates, 1)
	last := client.last()
	require.Equal(t, string(executor.StateFinalized), last.Stage)
	require.True(t, last.Complete)
	require.Equal(t, 0, fe.terminateCalls)
	require.Equal(t, 0, fe.cleanupCalls)
}

func TestHandleCancelJobExecutingTerminatesThenFinalizes(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	fe := &fakeExecutor{state: executor.StateExecuting}
	a.executors[def.ID] = fe

	require.NoError(t, a.handleCancelJob(context.Background(), task))

	require.Equal(t, 1, fe.terminateCalls)
	require.Equal(t, 1, fe.cleanupCalls)
	require.True(t, fe.finalizeCancelled)

	require.Len(t, client.updates, 2)
	require.Equal(t, string(executor.StateError), client.updates[0].Stage)
	require.False(t, client.updates[0].Complete)
	require.Equal(t, string(executor.StateFinalized), client.updates[1].Stage)
	require.True(t, client.updates[1].Complete)

	_, stillTracked := a.executors[def.ID]
	require.False(t, stillTracked)
}

func TestHandleCancelJobUnknownFinalizesDirectlyWithoutTerminate(t *testing.T) {
	client := &fakeClient{}
	factory := newFakeFactory()
	a := newTestAgent(client, factory, nil)

	def := testDef("job-1")
	task := runJobTask(t, def)
	// No prior executor entry: the agent process restarted and lost
	// its in-memory map, so this builds a fresh one via the factory
	// (state UNKNOWN), per spec.md §4.4.2's UNKNOWN branch.

	require.NoError(t, a.handleCancelJob(context.Background(), task))

	fe := factory.built[def.ID]
	require.NotNil(t, fe)
	require.Equal(t, 0, fe.terminateCalls)
	require.Equal(t, 1, fe.cleanupCalls)
	require.True(t, fe.finalizeCancelled)

	last := client.last()
	require.Equal(t, string(executor.StateFinalized), last.Stage)
	require.True(t, last.Complete)
}
