// Package dag implements the DAG resolver (spec.md §4.2): given a
// validated CreateRequest and a parsed pipeline, it produces the new
// Jobs to insert, wiring wait_for_job_ids to the latest uncancelled
// job per action.
package dag

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/pipeline"
	"github.com/RevCBH/ragweb/internal/store"
)

// ProjectFetcher retrieves project.yaml at a given commit. Grounded as
// an external collaborator: spec.md explicitly excludes the
// project/pipeline DSL and git checkout from the core's scope.
type ProjectFetcher interface {
	FetchProjectYAML(repoURL, commit string) ([]byte, error)
}

// CommitResolver checks that a commit is reachable from a branch.
type CommitResolver interface {
	CommitReachableFromBranch(repoURL, commit, branch string) (bool, error)
}

// JobStore is the subset of store.Store the resolver needs.
type JobStore interface {
	FindJobs(conds ...store.Cond) ([]*model.Job, error)
	InsertJob(j *model.Job) error
}

var workspacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidationError reports a CreateRequest field that failed §4.2 step 1.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("create_jobs: invalid %s: %s", e.Field, e.Message)
}

// StaleCodelistsError is returned when codelists_ok=false and any new
// Job requires database access (§4.2 step 8).
type StaleCodelistsError struct {
	RapID string
}

func (e *StaleCodelistsError) Error() string {
	return fmt.Sprintf("create_jobs: %s requires up-to-date codelists", e.RapID)
}

// NothingToDoError is a success outcome: the request produced no new
// Jobs (§4.2 step 9).
type NothingToDoError struct {
	Reason string
}

func (e *NothingToDoError) Error() string { return "create_jobs: nothing to do: " + e.Reason }

// Resolver implements CreateJobs.
type Resolver struct {
	Store           JobStore
	Projects        ProjectFetcher
	Commits         CommitResolver
	KnownBackends   []string
	AllowedOrgs     []string
	AllowedDBNames  []model.DatabaseName
	Now             func() time.Time
}

// CreateJobs runs the full §4.2 algorithm and returns the newly
// inserted Jobs (possibly empty only via NothingToDoError, never a
// silent empty success).
func (r *Resolver) CreateJobs(req model.CreateRequest) ([]*model.Job, error) {
	newJobs, err := r.resolve(req)
	if err != nil {
		return nil, err
	}

	for _, j := range newJobs {
		if err := r.Store.InsertJob(j); err != nil {
			return nil, fmt.Errorf("create_jobs: failed to insert job %s: %w", j.ID, err)
		}
	}

	return newJobs, nil
}

// PreviewJobs runs the same §4.2 resolution as CreateJobs but never
// inserts, for `ragctl workspace diff`: an operator wants to see what
// a RAP would schedule without actually scheduling it.
func (r *Resolver) PreviewJobs(req model.CreateRequest) ([]*model.Job, error) {
	return r.resolve(req)
}

func (r *Resolver) resolve(req model.CreateRequest) ([]*model.Job, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}

	data, err := r.Projects.FetchProjectYAML(req.RepoURL, req.Commit)
	if err != nil {
		return nil, fmt.Errorf("create_jobs: failed to fetch project.yaml: %w", err)
	}
	project, err := pipeline.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("create_jobs: %w", err)
	}

	currentJobs, err := r.currentJobsByAction(req.Backend, req.Workspace)
	if err != nil {
		return nil, fmt.Errorf("create_jobs: failed to load current jobs: %w", err)
	}

	requested := expandRequestedActions(req.RequestedActions, project)

	resolution := &resolution{
		project:     project,
		current:     currentJobs,
		planned:     make(map[string]*model.Job),
		reusedState: make(map[string]model.State),
	}

	for _, action := range requested {
		if err := resolution.ensure(action, true, req); err != nil {
			return nil, err
		}
	}

	newJobs := resolution.newJobsInOrder()

	if len(newJobs) == 0 {
		return nil, nothingToDo(req)
	}

	if !req.CodelistsOK {
		for _, j := range newJobs {
			if j.RequiresDB {
				return nil, &StaleCodelistsError{RapID: req.ID}
			}
		}
	}

	now := r.now()
	for _, j := range newJobs {
		j.CreatedAt = now.Unix()
		j.UpdatedAt = now.Unix()
		j.StatusCodeUpdatedAt = now.UnixNano()
	}

	return newJobs, nil
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Resolver) validate(req model.CreateRequest) error {
	if req.Workspace == "" || !workspacePattern.MatchString(req.Workspace) {
		return &ValidationError{Field: "workspace", Message: "must be non-empty alphanumeric, '-', or '_'"}
	}
	if !contains(r.KnownBackends, req.Backend) {
		return &ValidationError{Field: "backend", Message: fmt.Sprintf("unknown backend %q", req.Backend)}
	}
	if !containsDBName(r.AllowedDBNames, req.DatabaseName) {
		return &ValidationError{Field: "database_name", Message: fmt.Sprintf("unrecognised database_name %q", req.DatabaseName)}
	}
	org, err := githubOrg(req.RepoURL)
	if err != nil || !contains(r.AllowedOrgs, org) {
		return &ValidationError{Field: "repo_url", Message: fmt.Sprintf("%q does not belong to a permitted organisation", req.RepoURL)}
	}
	if r.Commits != nil {
		ok, err := r.Commits.CommitReachableFromBranch(req.RepoURL, req.Commit, req.Branch)
		if err != nil {
			return fmt.Errorf("create_jobs: failed to verify commit reachability: %w", err)
		}
		if !ok {
			return &ValidationError{Field: "commit", Message: fmt.Sprintf("%s is not reachable from branch %s", req.Commit, req.Branch)}
		}
	}
	return nil
}

// currentJobsByAction returns the latest uncancelled Job per action
// for (backend, workspace) (§4.2 step 3).
func (r *Resolver) currentJobsByAction(backend, workspace string) (map[string]*model.Job, error) {
	jobs, err := r.Store.FindJobs(store.Eq("backend", backend), store.Eq("workspace", workspace))
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*model.Job, len(jobs))
	for _, j := range jobs {
		if j.Cancelled {
			continue
		}
		existing, ok := latest[j.Action]
		if !ok || j.CreatedAt > existing.CreatedAt {
			latest[j.Action] = j
		}
	}
	return latest, nil
}

// expandRequestedActions substitutes the run_all sentinel with every
// action in the project (§4.2 step 4).
func expandRequestedActions(requested []string, project *pipeline.Project) []string {
	for _, a := range requested {
		if a == model.RunAllSentinel {
			return project.ActionNames()
		}
	}
	return requested
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsDBName(list []model.DatabaseName, v model.DatabaseName) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func nothingToDo(req model.CreateRequest) error {
	for _, a := range req.RequestedActions {
		if a == model.RunAllSentinel {
			return &NothingToDoError{Reason: "run_all produced no new work"}
		}
	}
	return &NothingToDoError{Reason: "all requested actions are already scheduled"}
}

// sortedActionNames returns the keys of a map of actions in sorted
// order; nothing in the package calls it.
func sortedActionNames(m map[string]*model.Job) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
