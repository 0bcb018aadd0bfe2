package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/executor"
	"github.com/RevCBH/ragweb/internal/model"
)

type fakeClient struct {
	mu      sync.Mutex
	updates []agentrpc.TaskUpdateRequest
}

func (f *fakeClient) ListTasks(ctx context.Context) ([]agentrpc.TaskDTO, error) { return nil, nil }

func (f *fakeClient) UpdateTask(ctx context.Context, req agentrpc.TaskUpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	return nil
}

func (f *fakeClient) last() agentrpc.TaskUpdateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

type fakeExecutor struct {
	state          executor.State
	advanceTo      executor.State
	executeCalls   int
	executeEnv     map[string]string
	terminateCalls int
	cleanupCalls   int
	finalizeResults model.JobTaskResults
	finalizeCancelled bool
	logs           string
}

func (f *fakeExecutor) State() executor.State { return f.state }

func (f *fakeExecutor) Prepare(ctx context.Context) error {
	f.state = executor.StatePrepared
	return nil
}

func (f *fakeExecutor) Execute(ctx context.Context, extraEnv map[string]string) error {
	f.executeCalls++
	f.executeEnv = extraEnv
	f.state = executor.StateExecuting
	return nil
}

func (f *fakeExecutor) Advance(ctx context.Context) (executor.State, error) {
	if f.advanceTo != "" {
		f.state = f.advanceTo
	}
	return f.state, nil
}

func (f *fakeExecutor) Terminate(ctx context.Context) error {
	f.terminateCalls++
	f.state = executor.StateError
	return nil
}

func (f *fakeExecutor) Finalize(ctx context.Context, cancelled bool) (model.JobTaskResults, error) {
	f.finalizeCancelled = cancelled
	f.state = executor.StateFinalized
	return f.finalizeResults, nil
}

func (f *fakeExecutor) Cleanup(ctx context.Context) error {
	f.cleanupCalls++
	return nil
}

func (f *fakeExecutor) Logs(ctx context.Context) (string, error) { return f.logs, nil }

type fakeFactory struct {
	built map[string]*fakeExecutor
}

func newFakeFactory() *fakeFactory { return &fakeFactory{built: map[string]*fakeExecutor{}} }

func (f *fakeFactory) New(def model.JobDefinition, workspaceRoot string) (executor.ExecutorAPI, error) {
	e := &fakeExecutor{state: executor.StateUnknown}
	f.built[def.ID] = e
	return e, nil
}

type fakeSecrets struct{ env map[string]string }

func (f fakeSecrets) EnvFor(name model.DatabaseName) map[string]string { return f.env }

func testDef(id string) model.JobDefinition {
	return model.JobDefinition{ID: id, TaskID: id + "-001", Action: "analyze", Image: "python:latest"}
}

func runJobTask(t *testing.T, def model.JobDefinition) agentrpc.TaskDTO {
	t.Helper()
	body, err := json.Marshal(def)
	require.NoError(t, err)
	return agentrpc.TaskDTO{ID: def.TaskID, Backend: "tpp", Type: string(model.TaskRunJob), Definition: string(body)}
}

func newTestAgent(client *fakeClient, factory *fakeFactory, secrets DBSecrets) *Agent {
	return New(client, factory, secrets, "/tmp/workspace", nil, zerolog.Nop(), nil)
}
