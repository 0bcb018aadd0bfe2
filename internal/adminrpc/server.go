package adminrpc

import (
	"context"
	"time"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// JobLister is the subset of store.Store a controller-role Server needs
// to answer ListActiveJobs.
type JobLister interface {
	FindJobs(conds ...store.Cond) ([]*model.Job, error)
}

// TaskLister is the subset of store.Store a controller-role Server
// needs to answer ListActiveTasks.
type TaskLister interface {
	FindTasks(conds ...store.Cond) ([]*model.Task, error)
}

// ActiveTaskCounter reports how many tasks an agent-role Server is
// currently executing, satisfied by *agent.Agent.
type ActiveTaskCounter interface {
	ActiveTaskCount() int
}

// ShutdownFunc performs the process-specific part of a graceful
// shutdown (stopping ticker loops, closing the store) and reports how
// many in-flight jobs it force-stopped.
type ShutdownFunc func(ctx context.Context, waitForJobs bool, timeout int32) (jobsStopped int32, err error)

// FlagStore is the subset of flags.Cache a controller-role Server needs
// to answer GetFlag/SetFlag/ListFlags/PrepareForReboot.
type FlagStore interface {
	Get(ctx context.Context, name, backend string) (*model.Flag, error)
	Set(ctx context.Context, name, backend string, value *string, now int64) error
	List(backend string) ([]*model.Flag, error)
}

// ManifestFetcher is the subset of dag.ProjectFetcher a controller-role
// Server needs to answer ShowManifest.
type ManifestFetcher interface {
	FetchProjectYAML(repoURL, commit string) ([]byte, error)
}

// WorkspaceDiffer is the subset of *dag.Resolver a controller-role
// Server needs to answer DiffWorkspace.
type WorkspaceDiffer interface {
	PreviewJobs(req model.CreateRequest) ([]*model.Job, error)
}

// Server implements AdminServiceServer for either a controller or an
// agent daemon. Role-specific fields are left nil for the other role:
// an agent Server has Jobs/Tasks/Flags/Manifest/Diff nil and Tasks set
// via Counter; a controller Server has Counter nil.
type Server struct {
	Role    string // "controller" or "agent"
	Version string

	Jobs  JobLister  // non-nil for role == "controller"
	Tasks TaskLister // non-nil for role == "controller"

	Counter ActiveTaskCounter // non-nil for role == "agent"

	Shutdown ShutdownFunc

	Flags    FlagStore       // non-nil for role == "controller"
	Backends []string        // known backends, paused by PrepareForReboot
	Manifest ManifestFetcher // non-nil for role == "controller"
	Diff     WorkspaceDiffer // non-nil for role == "controller"

	// Now stubs time.Now for tests; nil means the real clock.
	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var _ AdminServiceServer = (*Server)(nil)

// Status reports process health and current load.
func (s *Server) Status(ctx context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{
		Healthy: true,
		Role:    s.Role,
		Version: s.Version,
	}
	if s.Jobs != nil {
		jobs, err := s.Jobs.FindJobs(store.In("state", string(model.StatePending), string(model.StateRunning)))
		if err != nil {
			return nil, err
		}
		resp.ActiveJobs = int32(len(jobs))
	}
	if s.Tasks != nil {
		tasks, err := s.Tasks.FindTasks(store.Eq("active", true))
		if err != nil {
			return nil, err
		}
		resp.ActiveTasks = int32(len(tasks))
	}
	if s.Counter != nil {
		resp.ActiveTasks = int32(s.Counter.ActiveTaskCount())
	}
	return resp, nil
}

// Shutdown delegates to the daemon-specific ShutdownFunc.
func (s *Server) Shutdown(ctx context.Context, req *ShutdownRequest) (*ShutdownResponse, error) {
	if s.Shutdown == nil {
		return &ShutdownResponse{Success: true}, nil
	}
	stopped, err := s.Shutdown(ctx, req.WaitForJobs, req.TimeoutSeconds)
	if err != nil {
		return &ShutdownResponse{Success: false}, err
	}
	return &ShutdownResponse{Success: true, JobsStopped: stopped}, nil
}

// ListActiveJobs lists non-terminal jobs, optionally filtered by backend.
// Only meaningful against a controller-role Server; an agent-role
// Server has no Jobs and returns an empty list.
func (s *Server) ListActiveJobs(ctx context.Context, req *ListActiveJobsRequest) (*ListActiveJobsResponse, error) {
	if s.Jobs == nil {
		return &ListActiveJobsResponse{}, nil
	}
	conds := []store.Cond{store.In("state", string(model.StatePending), string(model.StateRunning))}
	if req.Backend != "" {
		conds = append(conds, store.Eq("backend", req.Backend))
	}
	jobs, err := s.Jobs.FindJobs(conds...)
	if err != nil {
		return nil, err
	}
	out := make([]JobSummaryDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSummaryDTO{
			ID:         j.ID,
			RapID:      j.RapID,
			Backend:    j.Backend,
			Workspace:  j.Workspace,
			Action:     j.Action,
			State:      string(j.State),
			StatusCode: string(j.StatusCode),
			CreatedAt:  j.CreatedAt,
		})
	}
	return &ListActiveJobsResponse{Jobs: out}, nil
}

// ListActiveTasks lists active tasks, optionally filtered by backend.
// Only meaningful against a controller-role Server.
func (s *Server) ListActiveTasks(ctx context.Context, req *ListActiveTasksRequest) (*ListActiveTasksResponse, error) {
	if s.Tasks == nil {
		return &ListActiveTasksResponse{}, nil
	}
	conds := []store.Cond{store.Eq("active", true)}
	if req.Backend != "" {
		conds = append(conds, store.Eq("backend", req.Backend))
	}
	tasks, err := s.Tasks.FindTasks(conds...)
	if err != nil {
		return nil, err
	}
	out := make([]TaskSummaryDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskSummaryDTO{
			ID:        t.ID,
			Backend:   t.Backend,
			Type:      string(t.Type),
			Active:    t.Active,
			CreatedAt: t.CreatedAt,
		})
	}
	return &ListActiveTasksResponse{Tasks: out}, nil
}

// PrepareForReboot pauses every known backend, then polls for RUNNING
// jobs to drain before a controller host reboot. Only meaningful
// against a controller-role Server.
func (s *Server) PrepareForReboot(ctx context.Context, req *PrepareForRebootRequest) (*PrepareForRebootResponse, error) {
	if s.Flags == nil || s.Jobs == nil {
		return &PrepareForRebootResponse{}, nil
	}

	now := s.now()
	on := model.FlagValueTrue
	paused := make([]string, 0, len(s.Backends))
	for _, b := range s.Backends {
		if err := s.Flags.Set(ctx, model.FlagPaused, b, &on, now.Unix()); err != nil {
			return nil, err
		}
		paused = append(paused, b)
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := s.now().Add(timeout)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		running, err := s.Jobs.FindJobs(store.In("state", string(model.StateRunning)))
		if err != nil {
			return nil, err
		}
		if len(running) == 0 {
			return &PrepareForRebootResponse{PausedBackends: paused}, nil
		}
		if s.now().After(deadline) {
			return &PrepareForRebootResponse{PausedBackends: paused, JobsRemaining: int32(len(running)), TimedOut: true}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetFlag reads a single flag. Only meaningful against a
// controller-role Server.
func (s *Server) GetFlag(ctx context.Context, req *GetFlagRequest) (*GetFlagResponse, error) {
	if s.Flags == nil {
		return &GetFlagResponse{}, nil
	}
	f, err := s.Flags.Get(ctx, req.Name, req.Backend)
	if err == store.ErrNotFound {
		return &GetFlagResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &GetFlagResponse{Flag: &FlagDTO{Name: f.Name, Backend: f.Backend, Value: f.Value, UpdatedAt: f.UpdatedAt}}, nil
}

// SetFlag writes a single flag; a nil Value clears it.
func (s *Server) SetFlag(ctx context.Context, req *SetFlagRequest) (*SetFlagResponse, error) {
	if s.Flags == nil {
		return &SetFlagResponse{}, nil
	}
	if err := s.Flags.Set(ctx, req.Name, req.Backend, req.Value, s.now().Unix()); err != nil {
		return nil, err
	}
	return &SetFlagResponse{}, nil
}

// ListFlags lists every flag set for a backend.
func (s *Server) ListFlags(ctx context.Context, req *ListFlagsRequest) (*ListFlagsResponse, error) {
	if s.Flags == nil {
		return &ListFlagsResponse{}, nil
	}
	flagList, err := s.Flags.List(req.Backend)
	if err != nil {
		return nil, err
	}
	out := make([]FlagDTO, 0, len(flagList))
	for _, f := range flagList {
		out = append(out, FlagDTO{Name: f.Name, Backend: f.Backend, Value: f.Value, UpdatedAt: f.UpdatedAt})
	}
	return &ListFlagsResponse{Flags: out}, nil
}

// ShowManifest resolves project.yaml at a commit via the same
// ProjectFetcher the DAG resolver uses, so ragctl never touches git
// directly.
func (s *Server) ShowManifest(ctx context.Context, req *ShowManifestRequest) (*ShowManifestResponse, error) {
	if s.Manifest == nil {
		return &ShowManifestResponse{}, nil
	}
	data, err := s.Manifest.FetchProjectYAML(req.RepoURL, req.Commit)
	if err != nil {
		return nil, err
	}
	return &ShowManifestResponse{YAML: string(data)}, nil
}

// DiffWorkspace previews what CreateJobs would schedule for a RAP
// without inserting anything.
func (s *Server) DiffWorkspace(ctx context.Context, req *DiffWorkspaceRequest) (*DiffWorkspaceResponse, error) {
	if s.Diff == nil {
		return &DiffWorkspaceResponse{}, nil
	}
	jobs, err := s.Diff.PreviewJobs(model.CreateRequest{
		Backend:          req.Backend,
		Workspace:        req.Workspace,
		RepoURL:          req.RepoURL,
		Commit:           req.Commit,
		Branch:           req.Branch,
		DatabaseName:     model.DatabaseName(req.DatabaseName),
		RequestedActions: req.RequestedActions,
		CodelistsOK:      req.CodelistsOK,
	})
	if err != nil {
		return nil, err
	}
	out := make([]JobSummaryDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSummaryDTO{
			ID:         j.ID,
			RapID:      j.RapID,
			Backend:    j.Backend,
			Workspace:  j.Workspace,
			Action:     j.Action,
			State:      string(j.State),
			StatusCode: string(j.StatusCode),
			CreatedAt:  j.CreatedAt,
		})
	}
	return &DiffWorkspaceResponse{Jobs: out}, nil
}
