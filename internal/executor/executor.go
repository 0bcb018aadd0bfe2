// Package executor implements the ExecutorAPI façade the Agent drives
// a job through: a container-runtime-backed state machine
// (UNKNOWN -> PREPARING -> PREPARED -> EXECUTING -> EXECUTED ->
// FINALIZING -> FINALIZED, plus ERROR) on top of docker/podman CLI
// invocations (spec.md §4.4, §6.2 "ExecutorAPI").
package executor

import (
	"context"

	"github.com/RevCBH/ragweb/internal/model"
)

// State is one point in the ExecutorAPI lifecycle (spec.md §6.2).
type State string

const (
	StateUnknown    State = "UNKNOWN"
	StatePreparing  State = "PREPARING"
	StatePrepared   State = "PREPARED"
	StateExecuting  State = "EXECUTING"
	StateExecuted   State = "EXECUTED"
	StateFinalizing State = "FINALIZING"
	StateFinalized  State = "FINALIZED"
	StateError      State = "ERROR"
)

// ExecutorAPI drives one job's container through its lifecycle. A
// single instance is created per job attempt and discarded once
// Cleanup returns; implementations need not be safe for concurrent use
// by more than one caller at a time (the Agent drives one job's
// executor from one goroutine).
type ExecutorAPI interface {
	// State reports the executor's current lifecycle state.
	State() State

	// Prepare checks out the study's code, populates the job's
	// workspace, and copies declared inputs from dependency jobs.
	// UNKNOWN -> PREPARING (while running) -> PREPARED.
	Prepare(ctx context.Context) error

	// Execute starts the container. extraEnv is merged over the job
	// definition's own env and is where database secrets are injected
	// when AllowDatabaseAccess is set — callers must never pass it
	// before the executor reaches PREPARED, so secrets never land in
	// an image layer. Execute does not block for the container to
	// exit; PREPARED -> EXECUTING.
	Execute(ctx context.Context, extraEnv map[string]string) error

	// Advance polls the running container, without blocking, and
	// transitions EXECUTING -> EXECUTED once it has exited. The Agent
	// calls this once per tick and posts whatever State() reports
	// (spec.md §4.4.2 "EXECUTING: idle heartbeat").
	Advance(ctx context.Context) (State, error)

	// Terminate force-stops a running container (EXECUTING -> ERROR),
	// used by the cancel path (spec.md §4.4.2).
	Terminate(ctx context.Context) error

	// Finalize resolves outputs and computes the job's results; it
	// does not write the container log anywhere (Logs returns it on
	// request). cancelled is true on the cancel path, where Finalize
	// resolves no outputs and persists nothing: it only returns results
	// that mark the job as cancelled.
	// EXECUTED -> FINALIZING (while running) -> FINALIZED.
	Finalize(ctx context.Context, cancelled bool) (model.JobTaskResults, error)

	// Cleanup removes the container and any scratch workspace state.
	// Always safe to call, any state -> terminal.
	Cleanup(ctx context.Context) error

	// Logs returns the container's combined stdout/stderr, for
	// post-processing steps that scan a finished job's log (e.g.
	// ehrql structured telemetry extraction). Safe to call any time
	// after Execute.
	Logs(ctx context.Context) (string, error)
}

// Factory builds an ExecutorAPI for one job attempt.
type Factory interface {
	New(def model.JobDefinition, workspaceRoot string) (ExecutorAPI, error)
}
