package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/RevCBH/ragweb/internal/model"
)

// heartbeatInterval bounds how long a job can sit at an unchanged code
// before updated_at is refreshed anyway (spec.md §4.3.7 "heartbeat").
const heartbeatInterval = time.Minute

// setCode is the single centralized setter for Job.State/StatusCode
// (spec.md §4.3.7 "Transition side effects are centralised in one
// setter"): it derives the coarse state from code, starts/clears
// started_at, stamps completed_at on final codes, records tracing
// spans for the interval just closed, and heartbeats updated_at when
// the code doesn't change.
func (c *Controller) setCode(ctx context.Context, job *model.Job, code model.StatusCode, message string, now time.Time) error {
	newState, ok := model.StateFor(code)
	if !ok {
		return fmt.Errorf("setCode: unrecognised status code %q", code)
	}

	if job.StatusCode == code {
		if now.Unix()-job.UpdatedAt >= int64(heartbeatInterval.Seconds()) {
			job.UpdatedAt = now.Unix()
			return c.store.UpdateJob(job)
		}
		return nil
	}

	if job.TraceContext != "" && job.StatusCodeUpdatedAt != 0 {
		prevStart := time.Unix(0, job.StatusCodeUpdatedAt)
		if err := c.tracer.RecordStatusSpan(ctx, job.TraceContext, job.StatusCode, prevStart, now); err != nil {
			c.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record status span")
		}
	}

	job.StatusCode = code
	job.State = newState
	job.StatusMessage = message
	job.StatusCodeUpdatedAt = model.ClampStatusTimestamp(job.StatusCodeUpdatedAt, now.UnixNano())
	job.UpdatedAt = now.Unix()

	if newState == model.StateRunning && job.StartedAt == nil {
		started := now.Unix()
		job.StartedAt = &started
	}
	if model.IsResetCode(code) {
		job.StartedAt = nil
	}
	if model.IsFinalCode(code) {
		completed := now.Unix()
		job.CompletedAt = &completed
		if job.TraceContext != "" {
			if err := c.tracer.RecordFinalMarker(ctx, job.TraceContext, code, now); err != nil {
				c.log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to record final marker span")
			}
		}
	}

	return c.store.UpdateJob(job)
}
