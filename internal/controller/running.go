package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RevCBH/ragweb/internal/model"
)

// handleRunning implements spec.md §4.3.3: a RUNNING job always has a
// current RUNJOB task. If the Agent marked it complete, resolve the
// final outcome (error, or exit-code-driven final code); otherwise
// mirror the Agent's reported stage into the job's status_code.
func (c *Controller) handleRunning(ctx context.Context, job *model.Job, now time.Time) error {
	task, err := c.currentRunJobTask(job)
	if err != nil {
		return fmt.Errorf("controller.handle_running: failed to load current task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("controller.handle_running: job %s is RUNNING with no current task", job.ID)
	}

	eventTime := now
	if task.AgentTimestampNS != nil {
		eventTime = time.Unix(0, *task.AgentTimestampNS)
	}

	if !task.AgentComplete {
		code := model.FromAgentStage(task.AgentStage, job.StatusCode)
		return c.setCode(ctx, job, code, "", eventTime)
	}

	var results model.JobTaskResults
	if task.AgentResults != "" {
		if err := json.Unmarshal([]byte(task.AgentResults), &results); err != nil {
			return fmt.Errorf("controller.handle_running: failed to parse agent results: %w", err)
		}
	}

	if results.Error != nil {
		if fatalJobError(*results.Error) {
			return c.setCode(ctx, job, model.CodeJobError, *results.Error, eventTime)
		}
		return c.setCode(ctx, job, model.CodeWaitingOnNewTask, "Retrying with a new task", eventTime)
	}

	code, message := resultToFinalCode(results, job.RequiresDB)
	return c.setCode(ctx, job, code, message, eventTime)
}
