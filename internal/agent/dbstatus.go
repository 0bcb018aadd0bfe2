package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/RevCBH/ragweb/internal/agentrpc"
	"github.com/RevCBH/ragweb/internal/model"
)

// TypeDBStatusProbe names the asynq task type a DBSTATUS Task enqueues
// (spec.md §4.4.4), so the probe container runs off the Agent's main
// tick goroutine instead of blocking handle_tasks on a container run.
const TypeDBStatusProbe = "dbstatus:probe"

// dbStatusAllowlist is the only values a probe's last stdout line may
// report; anything else is an error (spec.md §4.4.4).
var dbStatusAllowlist = map[string]bool{"": true, model.FlagValueModeDBMaint: true}

type dbStatusPayload struct {
	TaskID     string `json:"task_id"`
	Definition string `json:"definition"`
}

type dbStatusResult struct {
	taskID string
	status string
	err    error
}

// DBStatusQueue schedules and runs DBSTATUS probes asynchronously via
// asynq (SPEC_FULL.md §3's dependency decision, grounded on
// sojohnnysaid-mirai-app's asynq worker shape), handing finished
// results back to the Agent's Run loop through a buffered channel.
type DBStatusQueue struct {
	client  *asynq.Client
	runtime string

	mu      sync.Mutex
	results chan dbStatusResult
}

// NewDBStatusQueue builds a queue backed by the asynq Redis client at
// redisAddr, running probes through runtime ("docker" or "podman").
func NewDBStatusQueue(redisAddr, runtime string) *DBStatusQueue {
	return &DBStatusQueue{
		client:  asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		runtime: runtime,
		results: make(chan dbStatusResult, 16),
	}
}

// Mux returns the asynq handler registration for a worker process to
// serve (agent.service's metrics/probe thread, spec.md §4.8).
func (q *DBStatusQueue) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDBStatusProbe, q.handle)
	return mux
}

// Enqueue schedules a probe run for a DBSTATUS task.
func (q *DBStatusQueue) Enqueue(taskID, definition string) error {
	payload, err := json.Marshal(dbStatusPayload{TaskID: taskID, Definition: definition})
	if err != nil {
		return fmt.Errorf("agent.dbstatus: failed to marshal probe payload: %w", err)
	}
	_, err = q.client.Enqueue(asynq.NewTask(TypeDBStatusProbe, payload))
	if err != nil {
		return fmt.Errorf("agent.dbstatus: failed to enqueue probe: %w", err)
	}
	return nil
}

// Close releases the queue's Redis client.
func (q *DBStatusQueue) Close() error { return q.client.Close() }

func (q *DBStatusQueue) handle(ctx context.Context, t *asynq.Task) error {
	var payload dbStatusPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("agent.dbstatus: invalid probe payload: %w", err)
	}
	var def model.JobDefinition
	if err := json.Unmarshal([]byte(payload.Definition), &def); err != nil {
		return fmt.Errorf("agent.dbstatus: invalid job definition: %w", err)
	}

	status, err := q.runProbe(ctx, def)
	q.results <- dbStatusResult{taskID: payload.TaskID, status: status, err: err}
	return nil
}

// runProbe runs a minimal probe container and validates its last
// stdout line against the allowlist (spec.md §4.4.4).
func (q *DBStatusQueue) runProbe(ctx context.Context, def model.JobDefinition) (string, error) {
	args := append([]string{"run", "--rm", "--network", "db"}, def.Image)
	args = append(args, def.Args...)
	cmd := exec.CommandContext(ctx, q.runtime, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("agent.dbstatus: probe failed: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if !dbStatusAllowlist[last] {
		return "", fmt.Errorf("agent.dbstatus: probe reported disallowed status %q", last)
	}
	return last, nil
}

// handleDBStatus enqueues a DBSTATUS task's probe run (spec.md
// §4.4.4); the result is reported back asynchronously once the probe
// finishes, via drainDBStatusResults.
func (a *Agent) handleDBStatus(ctx context.Context, task agentrpc.TaskDTO) error {
	if a.dbStatus == nil {
		return a.completeWithError(ctx, task, fmt.Errorf("agent.db_status: no probe queue configured"))
	}
	return a.dbStatus.Enqueue(task.ID, task.Definition)
}

// drainDBStatusResults reports every probe result that finished since
// the last tick, without blocking if none are ready yet.
func (a *Agent) drainDBStatusResults(ctx context.Context) {
	for {
		select {
		case res := <-a.dbStatus.results:
			a.reportDBStatus(ctx, res)
		default:
			return
		}
	}
}

func (a *Agent) reportDBStatus(ctx context.Context, res dbStatusResult) {
	stage := "FINALIZED"
	var resultsJSON string
	if res.err != nil {
		stage = "ERROR"
		body, _ := json.Marshal(map[string]string{"error": res.err.Error()})
		resultsJSON = string(body)
	} else {
		body, _ := json.Marshal(map[string]string{"status": res.status})
		resultsJSON = string(body)
	}

	ts := a.now().UnixNano()
	if err := a.client.UpdateTask(ctx, agentrpc.TaskUpdateRequest{
		TaskID:      res.taskID,
		Stage:       stage,
		Results:     &resultsJSON,
		Complete:    true,
		TimestampNS: &ts,
	}); err != nil {
		a.log.Error().Err(err).Str("task_id", res.taskID).Msg("failed to report dbstatus result")
	}
}
