package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// handlePending implements spec.md §4.3.2: wait on unfinished/failed
// dependencies, then enforce per-backend worker/db-worker capacity
// before dispatching a RUNJOB task.
func (c *Controller) handlePending(ctx context.Context, job *model.Job, now time.Time) error {
	if len(job.WaitForJobIDs) > 0 {
		anyFailed, allSucceeded, err := c.awaitedDependencyStatus(job)
		if err != nil {
			return fmt.Errorf("controller.handle_pending: failed to load dependencies: %w", err)
		}
		if anyFailed {
			return c.setCode(ctx, job, model.CodeDependencyFailed, "A dependency job failed", now)
		}
		if !allSucceeded {
			return c.setCode(ctx, job, model.CodeWaitingOnDeps, "Waiting on dependency jobs", now)
		}
	}

	reason, message, err := c.reasonJobNotStarted(job)
	if err != nil {
		return fmt.Errorf("controller.handle_pending: failed to evaluate capacity: %w", err)
	}
	if reason != "" {
		return c.setCode(ctx, job, reason, message, now)
	}

	def := c.buildJobDefinition(job, now)
	return c.createRunJobTask(ctx, job, def, now)
}

// awaitedDependencyStatus loads job.WaitForJobIDs and reports whether
// any has FAILED, and whether all have SUCCEEDED.
func (c *Controller) awaitedDependencyStatus(job *model.Job) (anyFailed, allSucceeded bool, err error) {
	deps, err := c.store.FindJobs(store.In("id", toAnySlice(job.WaitForJobIDs)...))
	if err != nil {
		return false, false, err
	}
	byID := make(map[string]*model.Job, len(deps))
	for _, d := range deps {
		byID[d.ID] = d
	}

	allSucceeded = true
	for _, id := range job.WaitForJobIDs {
		dep, ok := byID[id]
		if !ok {
			allSucceeded = false
			continue
		}
		if dep.State == model.StateFailed {
			anyFailed = true
		}
		if dep.State != model.StateSucceeded {
			allSucceeded = false
		}
	}
	return anyFailed, allSucceeded, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// reasonJobNotStarted implements get_reason_job_not_started (spec.md
// §4.3.2): returns a non-empty StatusCode+message when job cannot
// start yet due to worker or db-worker capacity, or "" when it can.
func (c *Controller) reasonJobNotStarted(job *model.Job) (model.StatusCode, string, error) {
	limits := c.cfg.LimitsFor(job.Backend)

	running, err := c.store.FindJobs(
		store.Eq("backend", job.Backend),
		store.Eq("state", string(model.StateRunning)),
	)
	if err != nil {
		return "", "", err
	}

	var used float64
	var runningDBCount int
	for _, r := range running {
		used += c.weigher.Weight(r.Backend, r.Workspace, r.Action)
		if r.RequiresDB {
			runningDBCount++
		}
	}

	required := c.weigher.Weight(job.Backend, job.Workspace, job.Action)
	if used+required > float64(limits.MaxWorkers) {
		msg := "Waiting for a worker slot to become available"
		if required > 1 {
			msg = "Waiting for enough worker capacity to become available"
		}
		return model.CodeWaitingOnWorkers, msg, nil
	}

	if job.RequiresDB && runningDBCount >= limits.MaxDBWorkers {
		return model.CodeWaitingOnDBWorkers, "Waiting for a database worker slot to become available", nil
	}

	return "", "", nil
}

// buildJobDefinition assembles the Agent-facing payload for job
// (spec.md §6.3). RunCommand follows project.yaml's own convention of
// "<image> <command...>"; the first whitespace-separated token is the
// container image, the rest the command and its arguments.
func (c *Controller) buildJobDefinition(job *model.Job, now time.Time) model.JobDefinition {
	limits := c.cfg.LimitsFor(job.Backend)
	image, args := splitRunCommand(job.RunCommand)

	cpuCount := limits.DefaultCPUCount
	if cpuCount == 0 {
		cpuCount = c.cfg.DefaultJobCPUCount
	}
	memory := limits.DefaultMemory
	if memory == "" {
		memory = c.cfg.DefaultJobMemory
	}

	var dbName *model.DatabaseName
	if job.RequiresDB {
		d := model.DatabaseDefault
		dbName = &d
	}

	return model.JobDefinition{
		ID:    job.ID,
		RapID: job.RapID,
		Study: model.Study{
			GitRepoURL: job.RepoURL,
			Commit:     job.Commit,
		},
		Workspace:           job.Workspace,
		Action:              job.Action,
		CreatedAt:           now.Unix(),
		Image:               image,
		Args:                args,
		Inputs:              job.RequiresOutputsFrom,
		InputJobIDs:         job.WaitForJobIDs,
		OutputSpec:          job.OutputSpec,
		AllowDatabaseAccess: job.RequiresDB,
		DatabaseName:        dbName,
		CPUCount:            cpuCount,
		MemoryLimit:         memory,
		Level4MaxFilesize:   c.cfg.Level4MaxFilesize,
		Level4MaxCSVRows:    c.cfg.Level4MaxCSVRows,
	}
}

func splitRunCommand(runCommand string) (image string, args []string) {
	fields := strings.Fields(runCommand)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
