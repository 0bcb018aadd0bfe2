package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RevCBH/ragweb/internal/model"
)

func TestIsTransientUnwraps(t *testing.T) {
	base := errors.New("database is locked")
	err := NewTransient("tick", base)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(base))
	assert.ErrorIs(t, err, base)
}

func TestIsJobFinalExtractsCodeAndMessage(t *testing.T) {
	err := NewJobFinal(model.CodeNonzeroExit, "exit 1", errors.New("boom"))
	jf, ok := IsJobFinal(err)
	assert.True(t, ok)
	assert.Equal(t, model.CodeNonzeroExit, jf.Code)
	assert.Equal(t, "exit 1", jf.Message)
}

func TestIsFatal(t *testing.T) {
	err := NewFatal("per_job_handler", errors.New("panic recovered"))
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestUserMessageKnownCodes(t *testing.T) {
	assert.Equal(t, "Cancelled by user", UserMessage(model.CodeCancelledByUser))
	assert.Contains(t, UserMessage(model.CodeUnmatchedPattern), "expected patterns")
	assert.Contains(t, UserMessage(model.CodeInternalError), "Internal error")
	assert.Equal(t, "", UserMessage(model.CodeExecuting))
}
