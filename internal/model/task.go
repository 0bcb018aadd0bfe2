package model

import "fmt"

// TaskType identifies what an Agent is being asked to do.
type TaskType string

const (
	TaskRunJob    TaskType = "RUNJOB"
	TaskCancelJob TaskType = "CANCELJOB"
	TaskDBStatus  TaskType = "DBSTATUS"
)

// Task is one unit of work handed to an Agent. See spec.md §3 "Task".
type Task struct {
	ID      string
	Backend string
	Type    TaskType

	Definition string // opaque JSON the agent consumes
	Active     bool

	CreatedAt  int64 // s
	FinishedAt *int64

	Attributes map[string]string // tracing K/V

	AgentStage       string
	AgentComplete    bool
	AgentResults     string // opaque JSON
	AgentTimestampNS *int64
}

// RunJobTaskID formats the RUNJOB task id for the Nth (1-based) attempt
// at running jobID: "<job_id>-NNN", zero-padded so lexical order ==
// temporal order (§3 Task "Identity").
func RunJobTaskID(jobID string, n int) string {
	return fmt.Sprintf("%s-%03d", jobID, n)
}

// CancelJobTaskID formats the CANCELJOB task id paired with a RUNJOB task.
func CancelJobTaskID(runJobTaskID string) string {
	return runJobTaskID + "-cancel"
}
