package dag

import (
	"fmt"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/pipeline"
)

// resolution tracks in-progress DAG expansion across the recursive
// ensure() calls of §4.2 step 5: which actions got a newly planned Job,
// which reused an existing one, and the order jobs were planned in (so
// wait_for_job_ids only ever references already-planned/known jobs).
type resolution struct {
	project *pipeline.Project
	current map[string]*model.Job // action -> latest uncancelled job

	planned     map[string]*model.Job // action -> newly created Job
	order       []string              // action names in ensure() order
	reusedState map[string]model.State
}

// ensure recursively makes sure action has a Job to depend on,
// applying the re-run rules of §4.2 step 5. requested marks the
// top-level requested action, which is always re-added regardless of
// its current state.
func (res *resolution) ensure(action string, requested bool, req model.CreateRequest) error {
	spec, ok := res.project.Actions[action]
	if !ok {
		return fmt.Errorf("create_jobs: requested action %q is not defined in project.yaml", action)
	}

	if _, ok := res.planned[action]; ok {
		return nil // already ensured earlier in this resolution
	}

	existing, hasExisting := res.current[action]

	if hasExisting && !requested {
		switch existing.State {
		case model.StatePending, model.StateRunning:
			// Existing PENDING/RUNNING job: don't re-add, downstream waits on it.
			res.reusedState[action] = existing.State
			return res.ensureDeps(spec, req)
		case model.StateSucceeded, model.StateFailed:
			if !req.ForceRunDependencies {
				res.reusedState[action] = existing.State
				return nil
			}
			// fall through: re-add
		}
	} else if hasExisting && requested {
		switch existing.State {
		case model.StatePending, model.StateRunning:
			res.reusedState[action] = existing.State
			return res.ensureDeps(spec, req)
		}
		// requested action is always re-added even if previously
		// SUCCEEDED/FAILED (§4.2 step 5 "the requested action itself").
	}

	if err := res.ensureDeps(spec, req); err != nil {
		return err
	}

	waitFor := res.waitForJobIDs(spec)

	job := &model.Job{
		ID:                  model.NewJobID(req.ID, action),
		RapID:               req.ID,
		Backend:             req.Backend,
		Workspace:           req.Workspace,
		Action:              action,
		RunCommand:          spec.Run,
		RepoURL:             req.RepoURL,
		Commit:              req.Commit,
		RequiresOutputsFrom: spec.Needs,
		WaitForJobIDs:       waitFor,
		OutputSpec:          convertOutputs(spec.Outputs),
		RequiresDB:          spec.IsDatabaseAction,
		State:               model.StatePending,
		StatusCode:          model.CodeCreated,
		StatusMessage:       "Created",
		Cancelled:           false,
	}

	res.planned[action] = job
	res.order = append(res.order, action)
	return nil
}

// ensureDeps walks spec.Needs, recursively ensuring each dependency
// exists per the re-run rules (deps are never "requested").
func (res *resolution) ensureDeps(spec pipeline.ActionSpec, req model.CreateRequest) error {
	for _, dep := range spec.Needs {
		if err := res.ensure(dep, false, req); err != nil {
			return err
		}
	}
	return nil
}

// waitForJobIDs returns the ids of direct dependencies that ended up
// PENDING or RUNNING after expansion (§4.2 step 6): newly planned deps
// (always PENDING at creation) plus reused deps still active.
func (res *resolution) waitForJobIDs(spec pipeline.ActionSpec) []string {
	var ids []string
	for _, dep := range spec.Needs {
		if planned, ok := res.planned[dep]; ok {
			ids = append(ids, planned.ID)
			continue
		}
		if existing, ok := res.current[dep]; ok {
			if existing.State == model.StatePending || existing.State == model.StateRunning {
				ids = append(ids, existing.ID)
			}
		}
	}
	return ids
}

// newJobsInOrder returns the planned Jobs in dependency-first order
// (dependencies are always ensured, and thus planned, before their
// dependents by the recursion in ensure/ensureDeps).
func (res *resolution) newJobsInOrder() []*model.Job {
	jobs := make([]*model.Job, 0, len(res.order))
	for _, action := range res.order {
		jobs = append(jobs, res.planned[action])
	}
	return jobs
}

func convertOutputs(o pipeline.Outputs) model.OutputSpec {
	spec := model.OutputSpec{}
	if len(o.HighlySensitive) > 0 {
		spec[model.PrivacyHighlySensitive] = o.HighlySensitive
	}
	if len(o.ModeratelySensitive) > 0 {
		spec[model.PrivacyModeratelySensitive] = o.ModeratelySensitive
	}
	if len(o.MinimallySensitive) > 0 {
		spec[model.PrivacyMinimallySensitive] = o.MinimallySensitive
	}
	return spec
}
