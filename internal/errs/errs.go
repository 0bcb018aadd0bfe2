// Package errs classifies the three error classes the Controller and
// Agent loops distinguish (spec.md §7): transient/retryable, job-level
// final, and platform/fatal.
package errs

import (
	"errors"
	"fmt"

	"github.com/RevCBH/ragweb/internal/model"
)

// Transient marks an error that never changes persisted state; the
// calling loop simply continues on the next tick (DB locked, executor
// "retry" signal, HTTP 5xx, subprocess timeout).
type Transient struct {
	Op  string
	Err error
}

func (e *Transient) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }
func (e *Transient) Unwrap() error { return e.Err }

// NewTransient wraps err as a Transient error attributed to op.
func NewTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Op: op, Err: err}
}

// JobFinal marks a Job-level final error: the Job transitions to a
// specific terminal StatusCode with a user-visible Message.
type JobFinal struct {
	Code    model.StatusCode
	Message string
	Err     error
}

func (e *JobFinal) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job final (%s): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("job final (%s): %s", e.Code, e.Message)
}
func (e *JobFinal) Unwrap() error { return e.Err }

// NewJobFinal builds a JobFinal error for the given terminal code.
func NewJobFinal(code model.StatusCode, message string, cause error) error {
	return &JobFinal{Code: code, Message: message, Err: cause}
}

// Fatal marks a platform/fatal error: an unexpected failure in the
// Controller per-job handler that should re-raise and kill the loop so
// a process supervisor restarts it, or a captured Agent traceback that
// a Job couldn't recover from.
type Fatal struct {
	Op  string
	Err error
}

func (e *Fatal) Error() string { return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err) }
func (e *Fatal) Unwrap() error { return e.Err }

// NewFatal wraps err as a Fatal error attributed to op.
func NewFatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fatal{Op: op, Err: err}
}

// IsTransient reports whether err (or something it wraps) is Transient.
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}

// IsJobFinal reports whether err (or something it wraps) is JobFinal,
// returning the error itself for convenient code/message extraction.
func IsJobFinal(err error) (*JobFinal, bool) {
	var jf *JobFinal
	if errors.As(err, &jf) {
		return jf, true
	}
	return nil, false
}

// IsFatal reports whether err (or something it wraps) is Fatal.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}

// UserMessage returns the final status_message a caller should persist
// for well-known job-level final codes, matching spec.md §7's examples
// ("Cancelled by user", "Outputs matching expected patterns were not
// found...", "Internal error: ...").
func UserMessage(code model.StatusCode) string {
	switch code {
	case model.CodeCancelledByUser:
		return "Cancelled by user"
	case model.CodeKilledByAdmin:
		return "Killed by admin"
	case model.CodeUnmatchedPattern:
		return "Outputs matching expected patterns were not found. See job log for details."
	case model.CodeDependencyFailed:
		return "A required dependency job did not succeed"
	case model.CodeStaleCodelists:
		return "Codelists referenced by this action are out of date"
	case model.CodeNonzeroExit:
		return "Job exited with a nonzero status"
	case model.CodeInternalError:
		return "Internal error: this usually means a platform issue. Contact the team if it persists."
	case model.CodeJobError:
		return "The job reported an error during execution"
	default:
		return ""
	}
}
