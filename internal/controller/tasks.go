package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// currentRunJobTask returns the latest RUNJOB task for job (by id,
// which sorts lexically-equals-temporally since ids are
// "<job_id>-NNN" zero-padded), or nil if none exists.
func (c *Controller) currentRunJobTask(job *model.Job) (*model.Task, error) {
	tasks, err := c.store.FindTasks(
		store.Eq("backend", job.Backend),
		store.Eq("type", string(model.TaskRunJob)),
		store.Glob("id", job.ID+"-*"),
	)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	latest := tasks[0]
	for _, t := range tasks[1:] {
		if t.ID > latest.ID {
			latest = t
		}
	}
	return latest, nil
}

// createRunJobTask builds the JobDefinition for job, inserts a new
// RUNJOB task (spec.md §4.3.4: task_number = previous + 1, id =
// "<job_id>-NNN"), and advances the job to INITIATED in the same
// logical step.
func (c *Controller) createRunJobTask(ctx context.Context, job *model.Job, def model.JobDefinition, now time.Time) error {
	previous, err := c.currentRunJobTask(job)
	if err != nil {
		return fmt.Errorf("controller.create_run_job_task: failed to look up previous task: %w", err)
	}
	n := 1
	if previous != nil {
		n = taskAttemptNumber(previous.ID, job.ID) + 1
	}

	taskID := model.RunJobTaskID(job.ID, n)
	def.TaskID = taskID

	definition, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("controller.create_run_job_task: failed to marshal job definition: %w", err)
	}

	task := &model.Task{
		ID:         taskID,
		Backend:    job.Backend,
		Type:       model.TaskRunJob,
		Definition: string(definition),
		Active:     true,
		CreatedAt:  now.Unix(),
	}
	if err := c.store.InsertTask(task); err != nil {
		return fmt.Errorf("controller.create_run_job_task: failed to insert task: %w", err)
	}

	return c.setCode(ctx, job, model.CodeInitiated, "Job executing on the backend", now)
}

// taskAttemptNumber recovers the N in "<jobID>-NNN" from a RUNJOB task id.
func taskAttemptNumber(taskID, jobID string) int {
	suffix := taskID[len(jobID)+1:]
	n := 0
	for _, ch := range suffix {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}

// cancelActiveTask implements spec.md §4.3.4's cancel path: find the
// current active RUNJOB task; if there is none (or it is already
// inactive) nothing was ever sent to the agent, so no CANCELJOB is
// emitted. Otherwise deactivate the RUNJOB and insert a paired
// CANCELJOB task with the same definition.
func (c *Controller) cancelActiveTask(ctx context.Context, job *model.Job, now time.Time) error {
	task, err := c.currentRunJobTask(job)
	if err != nil {
		return fmt.Errorf("controller.cancel_active_task: failed to look up current task: %w", err)
	}
	if task == nil || !task.Active {
		return nil
	}

	if err := c.store.DeactivateTask(task.ID, now.Unix()); err != nil {
		return fmt.Errorf("controller.cancel_active_task: failed to deactivate task %s: %w", task.ID, err)
	}

	cancelTask := &model.Task{
		ID:         model.CancelJobTaskID(task.ID),
		Backend:    job.Backend,
		Type:       model.TaskCancelJob,
		Definition: task.Definition,
		Active:     true,
		CreatedAt:  now.Unix(),
	}
	if err := c.store.InsertTask(cancelTask); err != nil {
		return fmt.Errorf("controller.cancel_active_task: failed to insert cancel task: %w", err)
	}
	return nil
}
