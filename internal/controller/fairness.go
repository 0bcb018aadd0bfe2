package controller

import (
	"sort"

	"github.com/RevCBH/ragweb/internal/model"
)

// workspaceKey identifies a (backend, workspace) pair for the
// running_for_workspace fairness counter (spec.md §4.3 step 2).
type workspaceKey struct {
	Backend   string
	Workspace string
}

func workspaceKeyOf(j *model.Job) workspaceKey {
	return workspaceKey{Backend: j.Backend, Workspace: j.Workspace}
}

// sortByFairness re-sorts jobs in place by the tuple spec.md §4.3 step
// 3 defines: RUNNING jobs first, then by ascending
// running_for_workspace[(backend, workspace)], then db-requiring jobs
// first, then by ascending created_at.
func sortByFairness(jobs []*model.Job, runningForWorkspace map[workspaceKey]int) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]

		aRunningFirst := runningRank(a)
		bRunningFirst := runningRank(b)
		if aRunningFirst != bRunningFirst {
			return aRunningFirst < bRunningFirst
		}

		aCount := runningForWorkspace[workspaceKeyOf(a)]
		bCount := runningForWorkspace[workspaceKeyOf(b)]
		if aCount != bCount {
			return aCount < bCount
		}

		aDBFirst := dbRank(a)
		bDBFirst := dbRank(b)
		if aDBFirst != bDBFirst {
			return aDBFirst < bDBFirst
		}

		return a.CreatedAt < b.CreatedAt
	})
}

func runningRank(j *model.Job) int {
	if j.State == model.StateRunning {
		return 0
	}
	return 1
}

func dbRank(j *model.Job) int {
	if j.RequiresDB {
		return 0
	}
	return 1
}
