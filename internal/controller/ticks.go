package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// StartTicks launches the "ticks" background thread spec.md §4.8
// describes: periodic telemetry of live jobs, scheduled through
// robfig/cron with an "@every <TickPollInterval>" spec (one minute when
// the interval is unset). Returns the running *cron.Cron so the caller
// can Stop() it on shutdown.
func (c *Controller) StartTicks(ctx context.Context) (*cron.Cron, error) {
	interval := c.cfg.TickPollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	cr := cron.New()
	_, err := cr.AddFunc(everySpec(interval), func() {
		c.reportLiveJobs(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("controller.start_ticks: failed to schedule ticks: %w", err)
	}
	cr.Start()
	return cr, nil
}

// everySpec renders a time.Duration as a robfig/cron "@every" spec.
func everySpec(d time.Duration) string {
	return fmt.Sprintf("@every %s", d.String())
}

// reportLiveJobs logs a per-backend count of active jobs, the minimal
// telemetry spec.md §4.8's ticks thread is responsible for; background
// threads never write the primary entity tables (spec.md §5).
func (c *Controller) reportLiveJobs(ctx context.Context) {
	jobs, err := c.store.FindJobs(
		store.In("state", string(model.StatePending), string(model.StateRunning)),
	)
	if err != nil {
		c.log.Warn().Err(err).Msg("ticks: failed to load live jobs")
		return
	}

	counts := make(map[string]int)
	for _, j := range jobs {
		counts[j.Backend]++
	}
	for backend, count := range counts {
		c.log.Info().Str("backend", backend).Int("live_jobs", count).Msg("ticks")
	}
}
