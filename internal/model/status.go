package model

import "strings"

// State is the coarse Job lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// StatusCode is the fine-grained status within a State. Every StatusCode
// belongs to exactly one State; see statusStates below.
type StatusCode string

const (
	// PENDING codes
	CodeCreated              StatusCode = "created"
	CodeWaitingPaused        StatusCode = "waiting_paused"
	CodeWaitingDBMaintenance StatusCode = "waiting_db_maintenance"
	CodeWaitingOnDeps        StatusCode = "waiting_on_dependencies"
	CodeWaitingOnWorkers     StatusCode = "waiting_on_workers"
	CodeWaitingOnDBWorkers   StatusCode = "waiting_on_db_workers"
	CodeWaitingOnReboot      StatusCode = "waiting_on_reboot"
	CodeWaitingOnNewTask     StatusCode = "waiting_on_new_task"

	// RUNNING codes
	CodeInitiated  StatusCode = "initiated"
	CodePreparing  StatusCode = "preparing"
	CodePrepared   StatusCode = "prepared"
	CodeExecuting  StatusCode = "executing"
	CodeExecuted   StatusCode = "executed"
	CodeFinalizing StatusCode = "finalizing"
	CodeFinalized  StatusCode = "finalized"

	// SUCCEEDED code
	CodeSucceeded StatusCode = "succeeded"

	// FAILED codes
	CodeDependencyFailed StatusCode = "dependency_failed"
	CodeNonzeroExit      StatusCode = "nonzero_exit"
	CodeCancelledByUser  StatusCode = "cancelled_by_user"
	CodeUnmatchedPattern StatusCode = "unmatched_patterns"
	CodeInternalError    StatusCode = "internal_error"
	CodeKilledByAdmin    StatusCode = "killed_by_admin"
	CodeStaleCodelists   StatusCode = "stale_codelists"
	CodeJobError         StatusCode = "job_error"
)

// statusStates is the §4.3.7 table: the fixed set of status codes
// permitted for each coarse state.
var statusStates = map[StatusCode]State{
	CodeCreated:              StatePending,
	CodeWaitingPaused:        StatePending,
	CodeWaitingDBMaintenance: StatePending,
	CodeWaitingOnDeps:        StatePending,
	CodeWaitingOnWorkers:     StatePending,
	CodeWaitingOnDBWorkers:   StatePending,
	CodeWaitingOnReboot:      StatePending,
	CodeWaitingOnNewTask:     StatePending,

	CodeInitiated:  StateRunning,
	CodePreparing:  StateRunning,
	CodePrepared:   StateRunning,
	CodeExecuting:  StateRunning,
	CodeExecuted:   StateRunning,
	CodeFinalizing: StateRunning,
	CodeFinalized:  StateRunning,

	CodeSucceeded: StateSucceeded,

	CodeDependencyFailed: StateFailed,
	CodeNonzeroExit:      StateFailed,
	CodeCancelledByUser:  StateFailed,
	CodeUnmatchedPattern: StateFailed,
	CodeInternalError:    StateFailed,
	CodeKilledByAdmin:    StateFailed,
	CodeStaleCodelists:   StateFailed,
	CodeJobError:         StateFailed,
}

// resetCodes coexist with State=PENDING even though the job was
// previously RUNNING; they clear started_at (§4.3.7).
var resetCodes = map[StatusCode]bool{
	CodeWaitingOnReboot:      true,
	CodeWaitingDBMaintenance: true,
	CodeWaitingOnNewTask:     true,
}

// StateFor returns the coarse State a StatusCode belongs to.
// The second return is false for an unrecognised code.
func StateFor(code StatusCode) (State, bool) {
	s, ok := statusStates[code]
	return s, ok
}

// IsValidTransition reports whether code is a permitted status_code for state.
func IsValidTransition(state State, code StatusCode) bool {
	s, ok := statusStates[code]
	return ok && s == state
}

// IsFinalCode reports whether code terminates a Job (SUCCEEDED or FAILED row).
func IsFinalCode(code StatusCode) bool {
	s, ok := statusStates[code]
	return ok && (s == StateSucceeded || s == StateFailed)
}

// IsResetCode reports whether code is one of the PENDING codes that a
// previously-RUNNING job can re-enter (§4.3.7, §9).
func IsResetCode(code StatusCode) bool {
	return resetCodes[code]
}

// FromAgentStage maps a raw agent-reported stage string onto a StatusCode,
// falling back to def when the stage is unrecognised (mirrors
// StatusCode.from_value(agent_stage, default=current) in §4.3.3). The
// match ignores case: the Agent posts executor states in upper case
// ("EXECUTING") while StatusCode values are lower case.
func FromAgentStage(stage string, def StatusCode) StatusCode {
	code := StatusCode(strings.ToLower(stage))
	switch code {
	case CodeInitiated, CodePreparing, CodePrepared, CodeExecuting, CodeExecuted, CodeFinalizing, CodeFinalized:
		return code
	default:
		return def
	}
}
