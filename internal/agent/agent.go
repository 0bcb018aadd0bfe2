// Package agent implements the Agent's per-tick loop (spec.md §4.4):
// fetch active tasks from the Controller over agentrpc, dispatch each
// on its type (RUNJOB/CANCELJOB/DBSTATUS) against an ExecutorAPI state
// machine, and report progress back under a LOOP_TASK span.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/executor"
	"github.com/RevCBH/ragweb/internal/model"
)

// Client is the subset of agentrpc.Client the Agent loop needs.
type Client interface {
	ListTasks(ctx context.Context) ([]agentrpc.TaskDTO, error)
	UpdateTask(ctx context.Context, req agentrpc.TaskUpdateRequest) error
}

// DBSecrets resolves the env vars injected into a job's container once
// its executor reaches PREPARED, for jobs with AllowDatabaseAccess set
// (spec.md §4.4.1: "never do this before PREPARED so they never land
// in the workspace image").
type DBSecrets interface {
	EnvFor(databaseName model.DatabaseName) map[string]string
}

var tracer = otel.Tracer("github.com/RevCBH/ragweb/internal/agent")

// Agent drives one backend's active tasks through their ExecutorAPI
// lifecycle every tick.
type Agent struct {
	client        Client
	factory       executor.Factory
	secrets       DBSecrets
	workspaceRoot string
	dbStatus      *DBStatusQueue
	log           zerolog.Logger
	now           func() time.Time

	mu        sync.Mutex
	executors map[string]executor.ExecutorAPI // keyed by job id, spans CANCELJOB/RUNJOB of the same job
}

// New builds an Agent. now defaults to time.Now when nil. dbStatus may
// be nil, in which case DBSTATUS tasks fail fast (no queue configured).
func New(client Client, factory executor.Factory, secrets DBSecrets, workspaceRoot string, dbStatus *DBStatusQueue, log zerolog.Logger, now func() time.Time) *Agent {
	if now == nil {
		now = time.Now
	}
	return &Agent{
		client:        client,
		factory:       factory,
		secrets:       secrets,
		workspaceRoot: workspaceRoot,
		dbStatus:      dbStatus,
		log:           log,
		now:           now,
		executors:     make(map[string]executor.ExecutorAPI),
	}
}

// Tick runs one handle_tasks pass (spec.md §4.4): fetch active tasks,
// dispatch each under its own LOOP_TASK span. One task's failure never
// stops the others in the same tick from being attempted.
func (a *Agent) Tick(ctx context.Context) error {
	tasks, err := a.client.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("agent.tick: failed to list tasks: %w", err)
	}

	for _, task := range tasks {
		a.handleTask(ctx, task)
	}

	if a.dbStatus != nil {
		a.drainDBStatusResults(ctx)
	}
	return nil
}

func (a *Agent) handleTask(ctx context.Context, task agentrpc.TaskDTO) {
	spanCtx, span := tracer.Start(ctx, "LOOP_TASK", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.type", task.Type),
		attribute.String("task.backend", task.Backend),
	))
	defer span.End()

	var err error
	switch model.TaskType(task.Type) {
	case model.TaskRunJob:
		err = a.handleRunJob(spanCtx, task)
	case model.TaskCancelJob:
		err = a.handleCancelJob(spanCtx, task)
	case model.TaskDBStatus:
		err = a.handleDBStatus(spanCtx, task)
	default:
		err = fmt.Errorf("agent: unknown task type %q", task.Type)
	}
	if err != nil {
		span.RecordError(err)
		a.log.Error().Err(err).Str("task_id", task.ID).Str("task_type", task.Type).Msg("task handling failed")
	}
}

// Run ticks every interval until ctx is cancelled, recovering from
// panics so a bug in one tick restarts the loop rather than exiting
// the process (spec.md §4.8).
func (a *Agent) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.tickSafely(ctx)
			}
		}
	})
	return g.Wait()
}

func (a *Agent) tickSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("agent tick panicked; resuming next interval")
		}
	}()
	if err := a.Tick(ctx); err != nil {
		a.log.Error().Err(err).Msg("agent tick failed")
	}
}

func (a *Agent) executorFor(def model.JobDefinition) (executor.ExecutorAPI, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.executors[def.ID]; ok {
		return e, nil
	}
	e, err := a.factory.New(def, a.workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to build executor for job %s: %w", def.ID, err)
	}
	a.executors[def.ID] = e
	return e, nil
}

func (a *Agent) forgetExecutor(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.executors, jobID)
}

// ActiveTaskCount reports how many jobs currently have a live executor,
// for the admin-plane Status RPC (internal/adminrpc).
func (a *Agent) ActiveTaskCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.executors)
}

// postStage reports a bare stage transition, with no results payload.
func (a *Agent) postStage(ctx context.Context, taskID, stage string, complete bool) error {
	ts := a.now().UnixNano()
	return a.client.UpdateTask(ctx, agentrpc.TaskUpdateRequest{
		TaskID:      taskID,
		Stage:       stage,
		Complete:    complete,
		TimestampNS: &ts,
	})
}

// postResults reports a stage transition along with a JobTaskResults
// payload, JSON-encoded into the wire's opaque results string.
func (a *Agent) postResults(ctx context.Context, taskID, stage string, results model.JobTaskResults, complete bool) error {
	body, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("agent: failed to marshal results: %w", err)
	}
	s := string(body)
	ts := a.now().UnixNano()
	return a.client.UpdateTask(ctx, agentrpc.TaskUpdateRequest{
		TaskID:      taskID,
		Stage:       stage,
		Results:     &s,
		Complete:    complete,
		TimestampNS: &ts,
	})
}

// completeWithError reports a task as error-complete and returns cause
// so the caller's own error path (logging, non-fatal continuation)
// still runs (spec.md §4.4 "if fatal_task_error ... mark the task as
// error-complete so the Controller can act").
func (a *Agent) completeWithError(ctx context.Context, task agentrpc.TaskDTO, cause error) error {
	msg := cause.Error()
	results := model.JobTaskResults{Error: &msg}
	if postErr := a.postResults(ctx, task.ID, string(executor.StateError), results, true); postErr != nil {
		return fmt.Errorf("%w (also failed to report error to controller: %s)", cause, postErr)
	}
	return cause
}
