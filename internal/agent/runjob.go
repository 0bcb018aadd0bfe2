package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/RevCBH/ragweb/internal/agent/ehrqltelemetry"
	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/executor"
	"github.com/RevCBH/ragweb/internal/model"
)

// handleRunJob drives a RUNJOB task's executor through one dispatch
// step (spec.md §4.4.1). PREPARING and FINALIZING are synchronous: the
// agent posts the intermediate stage, performs the blocking operation,
// then posts the resulting stage.
func (a *Agent) handleRunJob(ctx context.Context, task agentrpc.TaskDTO) error {
	var def model.JobDefinition
	if err := json.Unmarshal([]byte(task.Definition), &def); err != nil {
		return a.completeWithError(ctx, task, fmt.Errorf("agent.run_job: invalid job definition: %w", err))
	}

	e, err := a.executorFor(def)
	if err != nil {
		return a.completeWithError(ctx, task, err)
	}

	switch state := e.State(); state {
	case executor.StateUnknown:
		if err := a.postStage(ctx, task.ID, string(executor.StatePreparing), false); err != nil {
			return err
		}
		if err := e.Prepare(ctx); err != nil {
			a.log.Error().Err(err).Str("job_id", def.ID).Msg("prepare failed")
		}
		return a.postStage(ctx, task.ID, string(e.State()), false)

	case executor.StatePrepared:
		extraEnv := a.dbSecretsFor(def)
		if err := e.Execute(ctx, extraEnv); err != nil {
			a.log.Error().Err(err).Str("job_id", def.ID).Msg("execute failed")
		}
		return a.postStage(ctx, task.ID, string(e.State()), false)

	case executor.StateExecuting:
		next, err := e.Advance(ctx)
		if err != nil {
			a.log.Error().Err(err).Str("job_id", def.ID).Msg("advance failed")
		}
		return a.postStage(ctx, task.ID, string(next), false)

	case executor.StateExecuted:
		if err := a.postStage(ctx, task.ID, string(executor.StateFinalizing), false); err != nil {
			return err
		}
		a.attachEhrqlTelemetry(ctx, e, def.ID)
		results, finErr := e.Finalize(ctx, false)
		if finErr != nil {
			a.log.Error().Err(finErr).Str("job_id", def.ID).Msg("finalize failed")
		}
		if err := e.Cleanup(ctx); err != nil {
			a.log.Error().Err(err).Str("job_id", def.ID).Msg("cleanup failed")
		}
		final := e.State()
		a.forgetExecutor(def.ID)
		return a.postResults(ctx, task.ID, string(final), results.Redact(), true)

	case executor.StateFinalized:
		a.forgetExecutor(def.ID)
		return a.postResults(ctx, task.ID, string(state), model.JobTaskResults{}.Redact(), true)

	case executor.StateError:
		msg := "executor reported an error"
		a.forgetExecutor(def.ID)
		return a.postResults(ctx, task.ID, string(state), model.JobTaskResults{Error: &msg}.Redact(), true)

	default:
		return fmt.Errorf("agent.run_job: unhandled executor state %q", state)
	}
}

// attachEhrqlTelemetry scans the job's container log for structured
// ehrql telemetry lines and attaches them as events on the current
// span, best-effort (SPEC_FULL.md §4 "ehrql log telemetry").
func (a *Agent) attachEhrqlTelemetry(ctx context.Context, e executor.ExecutorAPI, jobID string) {
	logText, err := e.Logs(ctx)
	if err != nil || logText == "" {
		return
	}
	events := ehrqltelemetry.Scan(strings.NewReader(logText))
	if len(events) == 0 {
		return
	}
	span := trace.SpanFromContext(ctx)
	ehrqltelemetry.Attach(span, events)
}

// dbSecretsFor resolves the env vars injected at PREPARED->EXECUTING,
// only for jobs that declared AllowDatabaseAccess (spec.md §4.4.1).
func (a *Agent) dbSecretsFor(def model.JobDefinition) map[string]string {
	if !def.AllowDatabaseAccess || a.secrets == nil {
		return nil
	}
	name := model.DatabaseDefault
	if def.DatabaseName != nil {
		name = *def.DatabaseName
	}
	return a.secrets.EnvFor(name)
}
