package controller

import (
	"strings"

	"github.com/RevCBH/ragweb/internal/model"
)

// dbExitCodeMessages maps well-known database-job exit codes to
// friendlier status messages (spec.md §4.3.6).
var dbExitCodeMessages = map[int]string{
	3:  "transient database error, will be retried",
	4:  "a database import is currently in progress",
	5:  "generic database error",
	10: "ehrql: query compilation error",
	11: "ehrql: query execution error",
	12: "ehrql: output validation error",
}

// resultToFinalCode implements spec.md §4.3.6's exit_code/flags ->
// final StatusCode+message mapping.
func resultToFinalCode(results model.JobTaskResults, requiresDB bool) (model.StatusCode, string) {
	if results.ExitCode != 0 {
		msg := "Job exited with an error"
		if requiresDB {
			if extra, ok := dbExitCodeMessages[results.ExitCode]; ok {
				msg = msg + " (" + extra + ")"
			}
		}
		if results.Message != nil && *results.Message != "" {
			msg = msg + ": " + *results.Message
		}
		return model.CodeNonzeroExit, msg
	}

	if results.HasUnmatchedPatterns {
		return model.CodeUnmatchedPattern, "Outputs matching expected patterns were not found"
	}

	msg := "Succeeded"
	if results.HasLevel4ExcludedFiles {
		msg = msg + " (some level 4 files were excluded)"
	}
	return model.CodeSucceeded, msg
}

// fatalJobError decides whether a task-reported error string ends the
// job (JOB_ERROR) or should simply cause a fresh task attempt
// (WAITING_ON_NEW_TASK). Only errors explicitly marked retryable by
// the agent are treated as non-fatal; everything else is a job error.
func fatalJobError(message string) bool {
	lower := strings.ToLower(message)
	return !strings.Contains(lower, "retry") && !strings.Contains(lower, "transient")
}
