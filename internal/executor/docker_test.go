package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/model"
)

// fakeRunner records every invocation and returns a scripted response
// per leading argument (e.g. "create" -> a fixed container id), so
// DockerExecutor can be exercised without a real docker/podman binary.
type fakeRunner struct {
	mu       sync.Mutex
	calls    [][]string
	response map[string]string
	errs     map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{response: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) runner() runner {
	return func(ctx context.Context, args ...string) (string, error) {
		f.mu.Lock()
		f.calls = append(f.calls, append([]string(nil), args...))
		f.mu.Unlock()
		if len(args) == 0 {
			return "", nil
		}
		if err, ok := f.errs[args[0]]; ok {
			return "", err
		}
		return f.response[args[0]], nil
	}
}

func testJobDefinition(id string) model.JobDefinition {
	return model.JobDefinition{
		ID:       id,
		RapID:    "rap-1",
		TaskID:   id + "-001",
		Study:    model.Study{GitRepoURL: "https://example.invalid/study", Commit: "deadbeef"},
		Workspace: "ws",
		Action:   "analyze",
		Image:    "python:latest",
		Args:     []string{"run", "analyze"},
		Env:      map[string]string{"A": "1"},
	}
}

func TestDockerExecutorExecuteAdvanceFinalize(t *testing.T) {
	fr := newFakeRunner()
	fr.response["create"] = "container-123"
	fr.response["wait"] = "0"

	root := t.TempDir()
	def := testJobDefinition("job-1")
	require.NoError(t, os.MkdirAll(filepath.Join(root, def.ID, "outputs"), 0o755))

	e := &DockerExecutor{def: def, workspaceRoot: root, run: fr.runner(), state: StatePrepared}

	require.NoError(t, e.Execute(context.Background(), map[string]string{"DB_URL": "postgres://x"}))
	require.Equal(t, StateExecuting, e.State())

	require.Eventually(t, func() bool {
		state, err := e.Advance(context.Background())
		require.NoError(t, err)
		return state == StateExecuted
	}, time.Second, time.Millisecond)

	results, err := e.Finalize(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 0, results.ExitCode)
	require.Equal(t, StateFinalized, e.State())

	var sawEnv bool
	for _, call := range fr.calls {
		if call[0] != "create" {
			continue
		}
		for i, a := range call {
			if a == "-e" && i+1 < len(call) && call[i+1] == "DB_URL=postgres://x" {
				sawEnv = true
			}
		}
	}
	require.True(t, sawEnv, "DB secret passed to Execute must reach the container create args")
}

func TestDockerExecutorExecuteRequiresPreparedState(t *testing.T) {
	fr := newFakeRunner()
	e := &DockerExecutor{def: testJobDefinition("job-1"), run: fr.runner(), state: StateUnknown}

	err := e.Execute(context.Background(), nil)
	require.Error(t, err)
}

func TestDockerExecutorFinalizeCancelledSkipsOutputResolution(t *testing.T) {
	fr := newFakeRunner()
	e := &DockerExecutor{def: testJobDefinition("job-1"), workspaceRoot: t.TempDir(), run: fr.runner(), state: StateExecuted}

	results, err := e.Finalize(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, -1, results.ExitCode)
	require.Equal(t, StateFinalized, e.State())
}

func TestDockerExecutorTerminateKillsContainerAndSetsError(t *testing.T) {
	fr := newFakeRunner()
	e := &DockerExecutor{def: testJobDefinition("job-1"), run: fr.runner(), state: StateExecuting, containerID: "container-123"}

	require.NoError(t, e.Terminate(context.Background()))
	require.Equal(t, StateError, e.State())

	require.Len(t, fr.calls, 1)
	require.Equal(t, []string{"kill", "container-123"}, fr.calls[0])
}

func TestDockerExecutorTerminateNoopWithoutContainer(t *testing.T) {
	fr := newFakeRunner()
	e := &DockerExecutor{def: testJobDefinition("job-1"), run: fr.runner(), state: StatePreparing}

	require.NoError(t, e.Terminate(context.Background()))
	require.Empty(t, fr.calls)
}

func TestDockerExecutorLogsFetchesContainerLogs(t *testing.T) {
	fr := newFakeRunner()
	fr.response["logs"] = "line one\nline two\n"
	e := &DockerExecutor{def: testJobDefinition("job-1"), run: fr.runner(), state: StateExecuted, containerID: "container-123"}

	out, err := e.Logs(context.Background())
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\n", out)
	require.Equal(t, []string{"logs", "container-123"}, fr.calls[0])
}

func TestDockerExecutorLogsEmptyWithoutContainer(t *testing.T) {
	fr := newFakeRunner()
	e := &DockerExecutor{def: testJobDefinition("job-1"), run: fr.runner(), state: StateUnknown}

	out, err := e.Logs(context.Background())
	require.NoError(t, err)
	require.Empty(t, out)
	require.Empty(t, fr.calls)
}

func TestDockerExecutorCleanupRemovesContainerAndWorkspace(t *testing.T) {
	fr := newFakeRunner()
	root := t.TempDir()
	def := testJobDefinition("job-1")
	dir := filepath.Join(root, def.ID)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	e := &DockerExecutor{def: def, workspaceRoot: root, run: fr.runner(), state: StateFinalized, containerID: "container-123"}
	require.NoError(t, e.Cleanup(context.Background()))

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, []string{"rm", "-f", "container-123"}, fr.calls[0])
}
