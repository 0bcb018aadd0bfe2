package model

import "encoding/json"

// DatabaseName is the allowed value set for CreateRequest.DatabaseName
// (spec.md §6.1).
type DatabaseName string

const (
	DatabaseDefault       DatabaseName = "default"
	DatabaseIncludeT1OO   DatabaseName = "include_t1oo"
)

// RunAllSentinel is the magic requested_actions entry expanding to every
// action in the project (spec.md §4.2 step 4).
const RunAllSentinel = "run_all"

// AnalysisScope carries optional dataset/component access constraints
// through a request untouched by the core (spec.md §3 "Job").
type AnalysisScope struct {
	DatasetPermissions json.RawMessage `json:"dataset_permissions,omitempty"`
	ComponentAccess    json.RawMessage `json:"component_access,omitempty"`
}

// CreateRequest is the validated input to the DAG resolver (spec.md §4.2).
type CreateRequest struct {
	ID                    string // rap_id
	Backend               string
	Workspace             string
	RepoURL               string
	Commit                string
	Branch                string
	DatabaseName          DatabaseName
	RequestedActions      []string
	ForceRunDependencies  bool
	CodelistsOK           bool
	CreatedBy             string
	Project               string
	Orgs                  []string
	AnalysisScope         AnalysisScope
	Original              json.RawMessage
}

// Study identifies the git checkout a JobDefinition's action runs against.
type Study struct {
	GitRepoURL string `json:"git_repo_url"`
	Commit     string `json:"commit"`
}

// JobDefinition is the payload the Agent consumes to run one job
// (spec.md §6.3).
type JobDefinition struct {
	ID       string `json:"id"`
	RapID    string `json:"rap_id"`
	TaskID   string `json:"task_id"`
	Study    Study  `json:"study"`

	Workspace string `json:"workspace"`
	Action    string `json:"action"`
	CreatedAt int64  `json:"created_at"`

	Image     string   `json:"image"`
	ImageSHA  string   `json:"image_sha"`
	Args      []string `json:"args"`
	Env       map[string]string `json:"env"`

	Inputs      []string `json:"inputs"`
	InputJobIDs []string `json:"input_job_ids"`
	OutputSpec  OutputSpec `json:"output_spec"`

	AllowDatabaseAccess bool          `json:"allow_database_access"`
	DatabaseName        *DatabaseName `json:"database_name,omitempty"`

	CPUCount    float64 `json:"cpu_count"`
	MemoryLimit string  `json:"memory_limit"`

	Level4MaxFilesize int64    `json:"level4_max_filesize"`
	Level4MaxCSVRows  int64    `json:"level4_max_csv_rows"`
	Level4FileTypes   []string `json:"level4_file_types"`
}

// JobTaskResults is what finalize() computes and the Agent reports
// back to the Controller (spec.md §4.3.6, redacted per §4.4.3 before
// it leaves the Agent).
type JobTaskResults struct {
	ExitCode int     `json:"exit_code"`
	Message  *string `json:"message,omitempty"`

	HasUnmatchedPatterns    bool `json:"has_unmatched_patterns"`
	HasLevel4ExcludedFiles  bool `json:"has_level4_excluded_files"`

	ImageID string `json:"image_id"`

	// Pre-redaction only fields; never sent to the Controller once
	// redacted (§4.4.3). Present here so the Agent's own finalize()
	// step can populate them before Redact() strips them.
	Outputs              map[string]string `json:"outputs,omitempty"`
	UnmatchedOutputs      []string          `json:"unmatched_outputs,omitempty"`
	UnmatchedPatterns     []string          `json:"unmatched_patterns,omitempty"`
	Level4ExcludedFiles   []string          `json:"level4_excluded_files,omitempty"`

	Hint *string `json:"hint,omitempty"`

	Error *string `json:"error,omitempty"`
}

// Redact drops the raw-filename-bearing arrays before the Agent posts
// results to the Controller, replacing them with booleans, and blanks
// status_message/hint when either flag is true (spec.md §4.4.3).
func (r JobTaskResults) Redact() JobTaskResults {
	redacted := r
	redacted.HasUnmatchedPatterns = len(r.UnmatchedPatterns) > 0 || r.HasUnmatchedPatterns
	redacted.HasLevel4ExcludedFiles = len(r.Level4ExcludedFiles) > 0 || r.HasLevel4ExcludedFiles
	redacted.Outputs = nil
	redacted.UnmatchedOutputs = nil
	redacted.UnmatchedPatterns = nil
	redacted.Level4ExcludedFiles = nil
	if redacted.HasUnmatchedPatterns || redacted.HasLevel4ExcludedFiles {
		redacted.Message = nil
		redacted.Hint = nil
	}
	return redacted
}
