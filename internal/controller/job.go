package controller

import (
	"context"
	"time"

	"github.com/RevCBH/ragweb/internal/errs"
	"github.com/RevCBH/ragweb/internal/model"
)

// handleJob is the per-job body of one tick (spec.md §4.3.1): cancel,
// pause, and db-maintenance branches take priority over the normal
// PENDING/RUNNING dispatch. A panic or unexpected error here is
// converted to INTERNAL_ERROR when it is recognisably fatal
// (errs.IsFatal), then re-raised so the surrounding tick aborts.
func (c *Controller) handleJob(ctx context.Context, job *model.Job) error {
	now := c.now()

	defer func() {
		if r := recover(); r != nil {
			_ = c.setCode(ctx, job, model.CodeInternalError, errs.UserMessage(model.CodeInternalError), now)
			panic(r)
		}
	}()

	if job.Cancelled {
		return c.handleCancelled(ctx, job, now)
	}

	paused, err := c.flags.IsPaused(ctx, job.Backend)
	if err != nil {
		return errs.NewTransient("controller.handle_job.is_paused", err)
	}
	if paused {
		return c.handlePaused(ctx, job, now)
	}

	mode, err := c.flags.Mode(ctx, job.Backend)
	if err != nil {
		return errs.NewTransient("controller.handle_job.mode", err)
	}
	if mode == model.FlagValueModeDBMaint && job.RequiresDB {
		return c.handleDBMaintenance(ctx, job, now)
	}

	switch job.State {
	case model.StatePending:
		if err := c.handlePending(ctx, job, now); err != nil {
			return c.onJobError(ctx, job, now, err)
		}
		return nil
	case model.StateRunning:
		if err := c.handleRunning(ctx, job, now); err != nil {
			return c.onJobError(ctx, job, now, err)
		}
		return nil
	default:
		return nil
	}
}

// onJobError applies spec.md §4.3.1's fatal-error handling: a fatal
// error transitions the job to INTERNAL_ERROR and is then re-raised so
// the tick loop logs and aborts the remainder of this job's handling
// (the surrounding Tick already treats a returned error as
// non-tick-fatal unless errs.IsFatal).
func (c *Controller) onJobError(ctx context.Context, job *model.Job, now time.Time, err error) error {
	if errs.IsFatal(err) {
		_ = c.setCode(ctx, job, model.CodeInternalError, errs.UserMessage(model.CodeInternalError), now)
		return err
	}
	if jf, ok := errs.IsJobFinal(err); ok {
		return c.setCode(ctx, job, jf.Code, jf.Message, now)
	}
	return err
}

func (c *Controller) handleCancelled(ctx context.Context, job *model.Job, now time.Time) error {
	if err := c.cancelActiveTask(ctx, job, now); err != nil {
		return errs.NewTransient("controller.handle_cancelled.cancel_task", err)
	}
	return c.setCode(ctx, job, model.CodeCancelledByUser, errs.UserMessage(model.CodeCancelledByUser), now)
}

func (c *Controller) handlePaused(ctx context.Context, job *model.Job, now time.Time) error {
	if job.State == model.StatePending && job.StatusCode != model.CodeWaitingOnReboot {
		return c.setCode(ctx, job, model.CodeWaitingPaused, "Paused", now)
	}
	job.UpdatedAt = now.Unix()
	return c.store.UpdateJob(job)
}

func (c *Controller) handleDBMaintenance(ctx context.Context, job *model.Job, now time.Time) error {
	if job.State == model.StateRunning {
		if err := c.cancelActiveTask(ctx, job, now); err != nil {
			return errs.NewTransient("controller.handle_db_maintenance.cancel_task", err)
		}
	}
	return c.setCode(ctx, job, model.CodeWaitingDBMaintenance, "Waiting for database maintenance to finish", now)
}
