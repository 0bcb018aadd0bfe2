package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/RevCBH/ragweb/internal/model"
)

// DockerFactory builds DockerExecutors against one detected runtime.
type DockerFactory struct {
	Runtime string // "docker" or "podman"
}

// NewDockerFactory detects an available runtime and returns a Factory
// bound to it.
func NewDockerFactory() (*DockerFactory, error) {
	runtime, err := DetectRuntime()
	if err != nil {
		return nil, err
	}
	return &DockerFactory{Runtime: runtime}, nil
}

func (f *DockerFactory) New(def model.JobDefinition, workspaceRoot string) (ExecutorAPI, error) {
	return &DockerExecutor{
		def:           def,
		workspaceRoot: workspaceRoot,
		run:           execRunner(f.Runtime),
		state:         StateUnknown,
	}, nil
}

var _ Factory = (*DockerFactory)(nil)

// DockerExecutor drives one job attempt's container through the
// ExecutorAPI lifecycle via docker/podman CLI invocations, the same
// create/start/wait/rm shape as the teacher's CLIManager but
// generalized into the lifecycle spec.md §4.4/§6.2 define.
type DockerExecutor struct {
	mu sync.Mutex

	def           model.JobDefinition
	workspaceRoot string
	run           runner

	state       State
	containerID string

	waitDone chan struct{}
	exitCode int
	waitErr  error
}

var _ ExecutorAPI = (*DockerExecutor)(nil)

func (e *DockerExecutor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *DockerExecutor) workspaceDir() string {
	return filepath.Join(e.workspaceRoot, e.def.ID)
}

// Prepare checks out the study at its pinned commit into a fresh
// workspace directory and copies each declared input's output files in
// from its dependency job's workspace (spec.md §4.4.1 "UNKNOWN").
func (e *DockerExecutor) Prepare(ctx context.Context) error {
	e.mu.Lock()
	e.state = StatePreparing
	e.mu.Unlock()

	dir := e.workspaceDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.fail()
		return fmt.Errorf("executor.prepare: failed to create workspace: %w", err)
	}

	if err := checkoutStudy(ctx, e.def.Study, dir); err != nil {
		e.fail()
		return fmt.Errorf("executor.prepare: failed to check out study: %w", err)
	}

	for i, inputJobID := range e.def.InputJobIDs {
		if i >= len(e.def.Inputs) {
			break
		}
		if err := copyJobOutputs(e.workspaceRoot, inputJobID, dir); err != nil {
			e.fail()
			return fmt.Errorf("executor.prepare: failed to copy inputs from %s: %w", inputJobID, err)
		}
	}

	e.mu.Lock()
	e.state = StatePrepared
	e.mu.Unlock()
	return nil
}

// Execute creates and starts the job's container, merging extraEnv
// (database secrets, when allowed) over the job definition's own env,
// then returns immediately — it never blocks for the container to
// finish (spec.md §4.4.2 "EXECUTING").
func (e *DockerExecutor) Execute(ctx context.Context, extraEnv map[string]string) error {
	e.mu.Lock()
	if e.state != StatePrepared {
		e.mu.Unlock()
		return fmt.Errorf("executor.execute: expected PREPARED, got %s", e.state)
	}
	e.mu.Unlock()

	env := make(map[string]string, len(e.def.Env)+len(extraEnv))
	for k, v := range e.def.Env {
		env[k] = v
	}
	for k, v := range extraEnv {
		env[k] = v
	}

	args := []string{"create", "--name", containerName(e.def), "-w", "/workspace"}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, "-v", fmt.Sprintf("%s:/workspace", e.workspaceDir()))
	if e.def.CPUCount > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%.2f", e.def.CPUCount))
	}
	if e.def.MemoryLimit != "" {
		args = append(args, "--memory", e.def.MemoryLimit)
	}
	args = append(args, e.def.Image)
	args = append(args, e.def.Args...)

	containerID, err := e.run(ctx, args...)
	if err != nil {
		e.fail()
		return fmt.Errorf("executor.execute: failed to create container: %w", err)
	}
	if _, err := e.run(ctx, "start", containerID); err != nil {
		e.fail()
		return fmt.Errorf("executor.execute: failed to start container: %w", err)
	}

	e.mu.Lock()
	e.containerID = containerID
	e.state = StateExecuting
	e.waitDone = make(chan struct{})
	e.mu.Unlock()

	go e.awaitExit(context.Background())
	return nil
}

func (e *DockerExecutor) awaitExit(ctx context.Context) {
	out, err := e.run(ctx, "wait", e.containerID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.waitErr = err
	} else if code, parseErr := parseExitCode(out); parseErr != nil {
		e.waitErr = fmt.Errorf("executor: failed to parse exit code %q: %w", out, parseErr)
	} else {
		e.exitCode = code
	}
	close(e.waitDone)
}

// Advance reports whether the container has exited yet, without
// blocking, transitioning EXECUTING -> EXECUTED when it has.
func (e *DockerExecutor) Advance(ctx context.Context) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateExecuting {
		return e.state, nil
	}
	select {
	case <-e.waitDone:
		if e.waitErr != nil {
			e.state = StateError
			return e.state, e.waitErr
		}
		e.state = StateExecuted
	default:
	}
	return e.state, nil
}

// Terminate force-stops a running container (the cancel path's
// SIGKILL-equivalent, spec.md §4.4.2).
func (e *DockerExecutor) Terminate(ctx context.Context) error {
	e.mu.Lock()
	containerID := e.containerID
	e.mu.Unlock()
	if containerID == "" {
		return nil
	}
	if _, err := e.run(ctx, "kill", containerID); err != nil {
		return fmt.Errorf("executor.terminate: failed to kill container: %w", err)
	}
	e.mu.Lock()
	e.state = StateError
	e.mu.Unlock()
	return nil
}

// Finalize resolves the job's outputs against its declared OutputSpec
// and computes JobTaskResults (spec.md §4.4.2/§4.3.6), or — on the
// cancel path — just records that the job was cancelled.
func (e *DockerExecutor) Finalize(ctx context.Context, cancelled bool) (model.JobTaskResults, error) {
	e.mu.Lock()
	e.state = StateFinalizing
	exitCode := e.exitCode
	e.mu.Unlock()

	if cancelled {
		msg := "Cancelled"
		e.mu.Lock()
		e.state = StateFinalized
		e.mu.Unlock()
		return model.JobTaskResults{ExitCode: -1, Message: &msg}, nil
	}

	results, err := resolveOutputs(e.workspaceDir(), e.def, exitCode)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateError
		return model.JobTaskResults{}, fmt.Errorf("executor.finalize: failed to resolve outputs: %w", err)
	}
	e.state = StateFinalized
	return results, nil
}

// Cleanup removes the container and the job's scratch workspace.
func (e *DockerExecutor) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	containerID := e.containerID
	dir := e.workspaceDir()
	e.mu.Unlock()

	if containerID != "" {
		_, _ = e.run(ctx, "rm", "-f", containerID)
	}
	return os.RemoveAll(dir)
}

// Logs returns the container's combined stdout/stderr via `docker
// logs`. Returns an empty string if no container was ever started.
func (e *DockerExecutor) Logs(ctx context.Context) (string, error) {
	e.mu.Lock()
	containerID := e.containerID
	e.mu.Unlock()
	if containerID == "" {
		return "", nil
	}
	out, err := e.run(ctx, "logs", containerID)
	if err != nil {
		return "", fmt.Errorf("executor.logs: failed to fetch container logs: %w", err)
	}
	return out, nil
}

func (e *DockerExecutor) fail() {
	e.mu.Lock()
	e.state = StateError
	e.mu.Unlock()
}

func containerName(def model.JobDefinition) string {
	return fmt.Sprintf("ragweb-%s", def.TaskID)
}

// checkoutStudy clones the study's repo at its pinned commit into dir.
// Uses a shallow, single-commit fetch so large study histories don't
// slow every job's PREPARING step.
func checkoutStudy(ctx context.Context, study model.Study, dir string) error {
	if err := runGit(ctx, dir, "init", "-q"); err != nil {
		return err
	}
	if err := runGit(ctx, dir, "fetch", "-q", "--depth", "1", study.GitRepoURL, study.Commit); err != nil {
		return err
	}
	return runGit(ctx, dir, "checkout", "-q", "FETCH_HEAD")
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %v: %s", args, string(out))
	}
	return nil
}

// copyJobOutputs copies every file under another job's workspace
// "outputs" directory into dir's "inputs/<job id>" directory.
func copyJobOutputs(workspaceRoot, jobID, dir string) error {
	src := filepath.Join(workspaceRoot, jobID, "outputs")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(dir, "inputs", jobID)
	return copyTree(src, dst)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
