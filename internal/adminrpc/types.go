// Package adminrpc implements the local CLI<->daemon control plane
// (SPEC_FULL.md §6): a small gRPC service (Status, Shutdown,
// ListActiveJobs, ListActiveTasks, PrepareForReboot, GetFlag, SetFlag,
// ListFlags, ShowManifest, DiffWorkspace) reachable over the same kind of
// Unix-socket listener as the teacher's internal/daemon, generalised
// from "one daemon running orchestrator jobs" to "one daemon wrapping
// either the Controller loop or the Agent loop". No protoc invocation
// happens in this environment, so the wire types below are plain
// JSON-tagged Go structs carried over google.golang.org/grpc's real
// transport via a hand-registered JSON codec (codec.go), and the
// service stubs (service.go) implement grpc.ServiceDesc by hand
// instead of being generated from a .proto file.
package adminrpc

// StatusRequest is Status's (empty) request.
type StatusRequest struct{}

// StatusResponse reports a running controller or agent process's
// health, matching the teacher's Health RPC shape but generalised
// with a Role and ActiveTasks alongside ActiveJobs.
type StatusResponse struct {
	Healthy     bool   `json:"healthy"`
	Role        string `json:"role"` // "controller" or "agent"
	Version     string `json:"version"`
	ActiveJobs  int32  `json:"active_jobs"`
	ActiveTasks int32  `json:"active_tasks"`
}

// ShutdownRequest requests graceful daemon termination, mirroring the
// teacher's ShutdownRequest (wait_for_jobs / timeout_seconds).
type ShutdownRequest struct {
	WaitForJobs    bool  `json:"wait_for_jobs"`
	TimeoutSeconds int32 `json:"timeout_seconds"`
}

// ShutdownResponse reports how many in-flight jobs were force-stopped.
type ShutdownResponse struct {
	Success     bool  `json:"success"`
	JobsStopped int32 `json:"jobs_stopped"`
}

// ListActiveJobsRequest optionally filters by backend; empty means all.
type ListActiveJobsRequest struct {
	Backend string `json:"backend,omitempty"`
}

// JobSummaryDTO is one Job's operator-facing summary.
type JobSummaryDTO struct {
	ID         string `json:"id"`
	RapID      string `json:"rap_id"`
	Backend    string `json:"backend"`
	Workspace  string `json:"workspace"`
	Action     string `json:"action"`
	State      string `json:"state"`
	StatusCode string `json:"status_code"`
	CreatedAt  int64  `json:"created_at"`
}

// ListActiveJobsResponse is ListActiveJobs' response.
type ListActiveJobsResponse struct {
	Jobs []JobSummaryDTO `json:"jobs"`
}

// ListActiveTasksRequest optionally filters by backend; empty means all.
type ListActiveTasksRequest struct {
	Backend string `json:"backend,omitempty"`
}

// TaskSummaryDTO is one Task's operator-facing summary.
type TaskSummaryDTO struct {
	ID        string `json:"id"`
	Backend   string `json:"backend"`
	Type      string `json:"type"`
	Active    bool   `json:"active"`
	CreatedAt int64  `json:"created_at"`
}

// ListActiveTasksResponse is ListActiveTasks' response.
type ListActiveTasksResponse struct {
	Tasks []TaskSummaryDTO `json:"tasks"`
}

// PrepareForRebootRequest requests that every known backend be paused
// and drained of RUNNING jobs before a controller host reboot
// (SPEC_FULL.md §4 "prepare_for_reboot").
type PrepareForRebootRequest struct {
	TimeoutSeconds int32 `json:"timeout_seconds"`
}

// PrepareForRebootResponse reports whether every backend drained
// before the timeout.
type PrepareForRebootResponse struct {
	PausedBackends []string `json:"paused_backends"`
	JobsRemaining  int32    `json:"jobs_remaining"`
	TimedOut       bool     `json:"timed_out"`
}

// FlagDTO is one Flag row's operator-facing view.
type FlagDTO struct {
	Name      string  `json:"name"`
	Backend   string  `json:"backend"`
	Value     *string `json:"value,omitempty"`
	UpdatedAt int64   `json:"updated_at"`
}

// GetFlagRequest names the flag to read.
type GetFlagRequest struct {
	Name    string `json:"name"`
	Backend string `json:"backend"`
}

// GetFlagResponse carries the flag, or a nil Flag if unset.
type GetFlagResponse struct {
	Flag *FlagDTO `json:"flag,omitempty"`
}

// SetFlagRequest names the flag to write. A nil Value clears it.
type SetFlagRequest struct {
	Name    string  `json:"name"`
	Backend string  `json:"backend"`
	Value   *string `json:"value,omitempty"`
}

// SetFlagResponse is Set's (empty) response.
type SetFlagResponse struct{}

// ListFlagsRequest lists every flag set for backend.
type ListFlagsRequest struct {
	Backend string `json:"backend"`
}

// ListFlagsResponse is ListFlags' response.
type ListFlagsResponse struct {
	Flags []FlagDTO `json:"flags"`
}

// ShowManifestRequest names the project.yaml to fetch.
type ShowManifestRequest struct {
	RepoURL string `json:"repo_url"`
	Commit  string `json:"commit"`
}

// ShowManifestResponse carries the raw project.yaml text, resolved by
// the controller's ProjectFetcher (git checkout stays out of scope;
// the CLI never touches git directly).
type ShowManifestResponse struct {
	YAML string `json:"yaml"`
}

// DiffWorkspaceRequest previews what CreateJobs would schedule for a
// RAP, without inserting anything (`ragctl workspace diff`).
type DiffWorkspaceRequest struct {
	Backend          string   `json:"backend"`
	Workspace        string   `json:"workspace"`
	RepoURL          string   `json:"repo_url"`
	Commit           string   `json:"commit"`
	Branch           string   `json:"branch"`
	DatabaseName     string   `json:"database_name"`
	RequestedActions []string `json:"requested_actions"`
	CodelistsOK      bool     `json:"codelists_ok"`
}

// DiffWorkspaceResponse lists the Jobs a matching CreateRequest would
// produce. Empty with no error means nothing would change.
type DiffWorkspaceResponse struct {
	Jobs []JobSummaryDTO `json:"jobs"`
}
