// Package controller implements the Controller's per-tick scheduling
// loop (spec.md §4.3): fairness-ordered job dispatch, task creation
// and cancellation, scheduled DBSTATUS maintenance, and the
// centralized Job state-machine transition setter.
package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RevCBH/ragweb/internal/config"
	"github.com/RevCBH/ragweb/internal/errs"
	"github.com/RevCBH/ragweb/internal/flags"
	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
	"github.com/RevCBH/ragweb/internal/tracing"
)

// Store is the subset of store.Store the Controller loop needs.
type Store interface {
	FindJobs(conds ...store.Cond) ([]*model.Job, error)
	UpdateJob(j *model.Job) error
	FindTasks(conds ...store.Cond) ([]*model.Task, error)
	InsertTask(t *model.Task) error
	DeactivateTask(id string, finishedAt int64) error
	GetTask(id string) (*model.Task, error)
}

// Flags is the subset of flags.Cache the Controller reads per tick.
type Flags interface {
	IsPaused(ctx context.Context, backend string) (bool, error)
	Mode(ctx context.Context, backend string) (string, error)
	ManualDBMaintenance(ctx context.Context, backend string) (bool, error)
	Set(ctx context.Context, name, backend string, value *string, now int64) error
}

// Tracer is the subset of tracing.Tracer the Controller records spans
// through.
type Tracer interface {
	StartRootSpan(ctx context.Context, job *model.Job, at time.Time) (string, error)
	RecordStatusSpan(ctx context.Context, traceContext string, code model.StatusCode, start, end time.Time, attrs ...any) error
	RecordFinalMarker(ctx context.Context, traceContext string, code model.StatusCode, at time.Time, attrs ...any) error
}

var _ Flags = (*flags.Cache)(nil)

// tracerAdapter narrows *tracing.Tracer's attribute.KeyValue variadic
// to the any-typed Tracer interface above, so this package doesn't
// need to import go.opentelemetry.io/otel/attribute just to spell the
// interface it depends on.
type tracerAdapter struct{ t *tracing.Tracer }

func (a tracerAdapter) StartRootSpan(ctx context.Context, job *model.Job, at time.Time) (string, error) {
	return a.t.StartRootSpan(ctx, job, at)
}
func (a tracerAdapter) RecordStatusSpan(ctx context.Context, traceContext string, code model.StatusCode, start, end time.Time, _ ...any) error {
	return a.t.RecordStatusSpan(ctx, traceContext, code, start, end)
}
func (a tracerAdapter) RecordFinalMarker(ctx context.Context, traceContext string, code model.StatusCode, at time.Time, _ ...any) error {
	return a.t.RecordFinalMarker(ctx, traceContext, code, at)
}

// NewTracer adapts a concrete *tracing.Tracer to the Controller's Tracer interface.
func NewTracer(t *tracing.Tracer) Tracer { return tracerAdapter{t: t} }

// Controller runs the scheduling loop for one or more backends.
type Controller struct {
	store   Store
	flags   Flags
	tracer  Tracer
	cfg     *config.ControllerConfig
	weigher *Weigher
	log     zerolog.Logger
	now     func() time.Time
}

// New builds a Controller. now defaults to time.Now when nil (tests
// supply a fixed clock).
func New(s Store, f Flags, t Tracer, cfg *config.ControllerConfig, w *Weigher, log zerolog.Logger, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{store: s, flags: f, tracer: t, cfg: cfg, weigher: w, log: log, now: now}
}

// Tick runs one handle_jobs pass (spec.md §4.3): load active jobs,
// repeatedly re-sort by the fairness tuple and handle the head job
// until the work list is empty, then run scheduled-task maintenance.
func (c *Controller) Tick(ctx context.Context) error {
	jobs, err := c.store.FindJobs(
		store.In("state", string(model.StatePending), string(model.StateRunning)),
	)
	if err != nil {
		return errs.NewTransient("controller.tick.load_jobs", err)
	}

	runningForWorkspace := make(map[workspaceKey]int)
	for _, j := range jobs {
		if j.State == model.StateRunning {
			runningForWorkspace[workspaceKeyOf(j)]++
		}
	}

	remaining := jobs
	for len(remaining) > 0 {
		sortByFairness(remaining, runningForWorkspace)
		job := remaining[0]
		remaining = remaining[1:]

		wasPending := job.State == model.StatePending
		if err := c.handleJob(ctx, job); err != nil {
			if errs.IsFatal(err) {
				c.log.Error().Err(err).Str("job_id", job.ID).Msg("fatal error in per-job handler")
				return err
			}
			c.log.Warn().Err(err).Str("job_id", job.ID).Msg("error handling job")
			continue
		}
		if wasPending && job.State == model.StateRunning {
			runningForWorkspace[workspaceKeyOf(job)]++
		}
	}

	return c.updateScheduledTasks(ctx)
}

// Run ticks every cfg.JobLoopInterval until ctx is cancelled, restarting
// the loop body after a logged panic rather than exiting the process
// (spec.md §4.8 "the process never exits because a side task died").
func (c *Controller) Run(ctx context.Context) error {
	interval := c.cfg.JobLoopInterval
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
				c.tickSafely(ctx)
			}
		}
	})
	return g.Wait()
}

// tickSafely runs one Tick, recovering from panics so a bug in one
// job's handling restarts the loop rather than killing the process.
func (c *Controller) tickSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("controller tick panicked; resuming next interval")
		}
	}()
	if err := c.Tick(ctx); err != nil {
		c.log.Error().Err(err).Msg("controller tick failed")
	}
}
