package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobIDDeterministic(t *testing.T) {
	a := NewJobID("rap-1", "generate_cohort")
	b := NewJobID("rap-1", "generate_cohort")
	require.Equal(t, a, b)

	c := NewJobID("rap-1", "other_action")
	assert.NotEqual(t, a, c)
}

func TestStateForTable(t *testing.T) {
	cases := []struct {
		code StatusCode
		want State
	}{
		{CodeCreated, StatePending},
		{CodeWaitingOnNewTask, StatePending},
		{CodeInitiated, StateRunning},
		{CodeFinalized, StateRunning},
		{CodeSucceeded, StateSucceeded},
		{CodeNonzeroExit, StateFailed},
		{CodeCancelledByUser, StateFailed},
	}
	for _, tc := range cases {
		got, ok := StateFor(tc.code)
		require.True(t, ok)
		assert.Equal(t, tc.want, got, tc.code)
	}
}

func TestIsValidTransitionRejectsCrossState(t *testing.T) {
	assert.True(t, IsValidTransition(StatePending, CodeWaitingOnDeps))
	assert.False(t, IsValidTransition(StatePending, CodeExecuting))
	assert.False(t, IsValidTransition(StateRunning, CodeCreated))
}

func TestIsFinalCode(t *testing.T) {
	assert.True(t, IsFinalCode(CodeSucceeded))
	assert.True(t, IsFinalCode(CodeCancelledByUser))
	assert.False(t, IsFinalCode(CodeExecuting))
	assert.False(t, IsFinalCode(CodeWaitingOnDeps))
}

func TestIsResetCode(t *testing.T) {
	assert.True(t, IsResetCode(CodeWaitingOnReboot))
	assert.True(t, IsResetCode(CodeWaitingDBMaintenance))
	assert.True(t, IsResetCode(CodeWaitingOnNewTask))
	assert.False(t, IsResetCode(CodeWaitingOnDeps))
}

func TestFromAgentStageFallsBackToDefault(t *testing.T) {
	assert.Equal(t, CodePreparing, FromAgentStage("preparing", CodeInitiated))
	assert.Equal(t, CodeInitiated, FromAgentStage("not-a-real-stage", CodeInitiated))
}

func TestClampStatusTimestampMonotonic(t *testing.T) {
	prev := int64(1000)
	assert.Equal(t, int64(2000), ClampStatusTimestamp(prev, 2000))
	// candidate <= previous: clamp to previous + 1ms
	assert.Equal(t, prev+int64(time.Millisecond), ClampStatusTimestamp(prev, 500))
	assert.Equal(t, prev+int64(time.Millisecond), ClampStatusTimestamp(prev, prev))
}

func TestClampDurationFloorsAtOneMillisecond(t *testing.T) {
	assert.Equal(t, time.Millisecond, ClampDuration(-5*time.Second))
	assert.Equal(t, time.Millisecond, ClampDuration(0))
	assert.Equal(t, 2*time.Second, ClampDuration(2*time.Second))
}

func TestRunJobTaskIDOrdering(t *testing.T) {
	first := RunJobTaskID("job123", 1)
	second := RunJobTaskID("job123", 2)
	assert.Equal(t, "job123-001", first)
	assert.Equal(t, "job123-002", second)
	assert.Less(t, first, second)
}

func TestCancelJobTaskID(t *testing.T) {
	assert.Equal(t, "job123-001-cancel", CancelJobTaskID("job123-001"))
}

func TestJobTaskResultsRedact(t *testing.T) {
	msg := "had some excluded files"
	hint := "check the log"
	r := JobTaskResults{
		ExitCode:            0,
		Message:             &msg,
		Hint:                &hint,
		Level4ExcludedFiles: []string{"secret_patient_id.csv"},
		UnmatchedOutputs:    []string{"missing.csv"},
	}

	redacted := r.Redact()

	assert.True(t, redacted.HasLevel4ExcludedFiles)
	assert.Nil(t, redacted.Level4ExcludedFiles)
	assert.Nil(t, redacted.UnmatchedOutputs)
	assert.Nil(t, redacted.Message, "message must be blanked when level4 files excluded")
	assert.Nil(t, redacted.Hint)
}

func TestJobTaskResultsRedactLeavesCleanResultsAlone(t *testing.T) {
	msg := "all good"
	r := JobTaskResults{ExitCode: 0, Message: &msg}
	redacted := r.Redact()
	assert.False(t, redacted.HasUnmatchedPatterns)
	assert.False(t, redacted.HasLevel4ExcludedFiles)
	require.NotNil(t, redacted.Message)
	assert.Equal(t, "all good", *redacted.Message)
}
