// Package restapi implements the external inbound client REST surface
// (spec.md §6.1): POST /rap/create/, /rap/cancel/, /rap/status/, and
// GET /backend/status/, consumed by whatever system submits RAP
// requests (the DAG resolver / Controller's own external collaborator,
// per §1's framing — this package is the thin HTTP edge around it).
package restapi

import "encoding/json"

// CreateJobRequest is POST /rap/create/'s body (spec.md §6.1; unlisted
// keys are reserved and ignored here).
type CreateJobRequest struct {
	ID                   string          `json:"id"`
	Backend              string          `json:"backend"`
	Workspace            string          `json:"workspace"`
	RepoURL              string          `json:"repo_url"`
	Branch               string          `json:"branch"`
	Commit               string          `json:"commit"`
	DatabaseName         string          `json:"database_name"`
	RequestedActions     []string        `json:"requested_actions"`
	CodelistsOK          bool            `json:"codelists_ok"`
	ForceRunDependencies bool            `json:"force_run_dependencies"`
	CreatedBy            string          `json:"created_by"`
	Project              string          `json:"project"`
	Orgs                 []string        `json:"orgs"`
	AnalysisScope        json.RawMessage `json:"analysis_scope,omitempty"`
}

// CreateJobResponse is 201/200's body.
type CreateJobResponse struct {
	RapID string   `json:"rap_id"`
	Jobs  []JobDTO `json:"jobs"`
}

// JobDTO is the subset of a Job exposed over the client REST surface.
type JobDTO struct {
	ID         string `json:"id"`
	RapID      string `json:"rap_id"`
	Backend    string `json:"backend"`
	Workspace  string `json:"workspace"`
	Action     string `json:"action"`
	State      string `json:"state"`
	StatusCode string `json:"status_code"`
	Cancelled  bool   `json:"cancelled"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// CancelJobRequest is POST /rap/cancel/'s body.
type CancelJobRequest struct {
	RapID   string   `json:"rap_id"`
	Actions []string `json:"actions"`
}

// CancelJobResponse is /rap/cancel/'s 200 body.
type CancelJobResponse struct {
	Cancelled int64 `json:"cancelled"`
}

// StatusRequest is POST /rap/status/'s body.
type StatusRequest struct {
	RapIDs []string `json:"rap_ids"`
}

// StatusResponse is /rap/status/'s 200 body: unrecognised rap_ids are
// listed separately rather than erroring, so a caller can't probe for
// another tenant's rap_id via a 404 (spec.md §6.1).
type StatusResponse struct {
	Jobs               []JobDTO `json:"jobs"`
	UnrecognisedRapIDs []string `json:"unrecognised_rap_ids"`
}

// BackendStatusResponse is GET /backend/status/'s body.
type BackendStatusResponse struct {
	Backends []BackendStatusDTO `json:"backends"`
}

// PauseStatus carries whether a backend is paused and since when.
type PauseStatus struct {
	Status bool   `json:"status"`
	Since  *int64 `json:"since,omitempty"`
}

// DBMaintenanceStatus carries whether a backend is under db maintenance,
// since when, and whether it was manually forced or scheduled by a
// DBSTATUS probe.
type DBMaintenanceStatus struct {
	Status bool   `json:"status"`
	Since  *int64 `json:"since,omitempty"`
	Type   string `json:"type,omitempty"`
}

// BackendStatusDTO is one entry of GET /backend/status/'s response
// (spec.md §6.1, field shape supplemented one-for-one from
// original_source/controller/webapp/views/rap_views.py).
type BackendStatusDTO struct {
	Slug           string              `json:"slug"`
	LastSeen       *string             `json:"last_seen,omitempty"`
	Paused         PauseStatus         `json:"paused"`
	DBMaintenance  DBMaintenanceStatus `json:"db_maintenance"`
}

// errorResponse is the generic body every 4xx/5xx returns.
type errorResponse struct {
	Error string `json:"error"`
}
