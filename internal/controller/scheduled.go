package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// updateScheduledTasks implements spec.md §4.3.5: for each backend
// enrolled in database maintenance, keep exactly one DBSTATUS probe
// outstanding unless manual maintenance mode overrides it.
func (c *Controller) updateScheduledTasks(ctx context.Context) error {
	for _, backend := range c.cfg.MaintenanceBackends {
		if err := c.updateScheduledDBStatus(ctx, backend); err != nil {
			c.log.Warn().Err(err).Str("backend", backend).Msg("failed to update scheduled DBSTATUS task")
		}
	}
	return nil
}

func (c *Controller) updateScheduledDBStatus(ctx context.Context, backend string) error {
	manual, err := c.flags.ManualDBMaintenance(ctx, backend)
	if err != nil {
		return fmt.Errorf("failed to read manual-db-maintenance flag: %w", err)
	}

	tasks, err := c.store.FindTasks(
		store.Eq("backend", backend),
		store.Eq("type", string(model.TaskDBStatus)),
	)
	if err != nil {
		return fmt.Errorf("failed to load DBSTATUS tasks: %w", err)
	}

	var active *model.Task
	var lastFinished *model.Task
	for _, t := range tasks {
		if t.Active {
			active = t
			continue
		}
		if t.FinishedAt != nil && (lastFinished == nil || *t.FinishedAt > *lastFinished.FinishedAt) {
			lastFinished = t
		}
	}

	if manual {
		if active != nil {
			return c.store.DeactivateTask(active.ID, c.now().Unix())
		}
		return nil
	}

	if active != nil {
		return nil
	}

	now := c.now()
	if lastFinished != nil && lastFinished.FinishedAt != nil {
		elapsed := now.Sub(time.Unix(*lastFinished.FinishedAt, 0))
		if elapsed < c.cfg.MaintenancePollInterval {
			return nil
		}
	}

	definition, err := json.Marshal(map[string]string{"database_name": string(model.DatabaseDefault)})
	if err != nil {
		return fmt.Errorf("failed to marshal DBSTATUS definition: %w", err)
	}

	task := &model.Task{
		ID:         ulid.Make().String(),
		Backend:    backend,
		Type:       model.TaskDBStatus,
		Definition: string(definition),
		Active:     true,
		CreatedAt:  now.Unix(),
	}
	return c.store.InsertTask(task)
}
