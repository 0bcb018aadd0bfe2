package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/executor"
	"github.com/RevCBH/ragweb/internal/model"
)

// handleCancelJob drives a CANCELJOB task (spec.md §4.4.2). Its
// Definition is the same JobDefinition JSON as the paired RUNJOB task
// (controller.cancelActiveTask copies it verbatim), so def.ID recovers
// the same in-flight executor instance handleRunJob was driving.
func (a *Agent) handleCancelJob(ctx context.Context, task agentrpc.TaskDTO) error {
	var def model.JobDefinition
	if err := json.Unmarshal([]byte(task.Definition), &def); err != nil {
		return a.completeWithError(ctx, task, fmt.Errorf("agent.cancel_job: invalid job definition: %w", err))
	}

	e, err := a.executorFor(def)
	if err != nil {
		return a.completeWithError(ctx, task, err)
	}

	if state := e.State(); state == executor.StateFinalized {
		a.forgetExecutor(def.ID)
		return a.postStage(ctx, task.ID, string(state), true)
	}

	if e.State() == executor.StateExecuting {
		if err := e.Terminate(ctx); err != nil {
			a.log.Error().Err(err).Str("job_id", def.ID).Msg("terminate failed")
		}
		if err := a.postStage(ctx, task.ID, string(e.State()), false); err != nil {
			return err
		}
	}

	results, finErr := e.Finalize(ctx, true)
	if finErr != nil {
		a.log.Error().Err(finErr).Str("job_id", def.ID).Msg("cancel finalize failed")
	}
	if err := e.Cleanup(ctx); err != nil {
		a.log.Error().Err(err).Str("job_id", def.ID).Msg("cleanup failed")
	}
	final := e.State()
	a.forgetExecutor(def.ID)

	return a.postResults(ctx, task.ID, string(final), results.Redact(), true)
}
