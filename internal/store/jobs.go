package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RevCBH/ragweb/internal/model"
)

const jobColumns = `
	id, rap_id, backend, workspace, action, run_command, repo_url, commit_sha,
	requires_outputs_from, wait_for_job_ids, output_spec, requires_db,
	state, status_code, status_message, status_code_updated_at,
	created_at, updated_at, started_at, completed_at, cancelled,
	trace_context, analysis_scope, action_repo_url, action_commit
`

// InsertJob inserts a new Job row. Returns ErrLocked if the write
// collides with another writer.
func (s *Store) InsertJob(j *model.Job) error {
	return s.withTx(func(tx *sql.Tx) error {
		return insertJob(tx, j)
	})
}

func insertJob(ex execer, j *model.Job) error {
	requiresOutputsFrom, err := json.Marshal(j.RequiresOutputsFrom)
	if err != nil {
		return fmt.Errorf("failed to marshal requires_outputs_from: %w", err)
	}
	waitForJobIDs, err := json.Marshal(j.WaitForJobIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal wait_for_job_ids: %w", err)
	}
	outputSpec, err := json.Marshal(j.OutputSpec)
	if err != nil {
		return fmt.Errorf("failed to marshal output_spec: %w", err)
	}
	analysisScope, err := json.Marshal(j.AnalysisScope)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis_scope: %w", err)
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	)`

	_, err = ex.Exec(query,
		j.ID, j.RapID, j.Backend, j.Workspace, j.Action, j.RunCommand, j.RepoURL, j.Commit,
		string(requiresOutputsFrom), string(waitForJobIDs), string(outputSpec), j.RequiresDB,
		string(j.State), string(j.StatusCode), j.StatusMessage, j.StatusCodeUpdatedAt,
		j.CreatedAt, j.UpdatedAt, j.StartedAt, j.CompletedAt, j.Cancelled,
		j.TraceContext, string(analysisScope), j.ActionRepoURL, j.ActionCommit,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", j.ID, classify(err))
	}
	return nil
}

func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	j := &model.Job{}
	var requiresOutputsFrom, waitForJobIDs, outputSpec, analysisScope string
	var state, statusCode string

	err := row.Scan(
		&j.ID, &j.RapID, &j.Backend, &j.Workspace, &j.Action, &j.RunCommand, &j.RepoURL, &j.Commit,
		&requiresOutputsFrom, &waitForJobIDs, &outputSpec, &j.RequiresDB,
		&state, &statusCode, &j.StatusMessage, &j.StatusCodeUpdatedAt,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt, &j.Cancelled,
		&j.TraceContext, &analysisScope, &j.ActionRepoURL, &j.ActionCommit,
	)
	if err != nil {
		return nil, err
	}

	j.State = model.State(state)
	j.StatusCode = model.StatusCode(statusCode)

	if err := json.Unmarshal([]byte(requiresOutputsFrom), &j.RequiresOutputsFrom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal requires_outputs_from: %w", err)
	}
	if err := json.Unmarshal([]byte(waitForJobIDs), &j.WaitForJobIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wait_for_job_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(outputSpec), &j.OutputSpec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output_spec: %w", err)
	}
	if err := json.Unmarshal([]byte(analysisScope), &j.AnalysisScope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis_scope: %w", err)
	}

	return j, nil
}

// GetJob retrieves a Job by id. Returns ErrNotFound if no row matches.
func (s *Store) GetJob(id string) (*model.Job, error) {
	row := s.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return j, nil
}

// FindJobs returns every Job matching all of conds, in this package's
// query sugar (spec.md §4.1).
func (s *Store) FindJobs(conds ...Cond) ([]*model.Job, error) {
	where, args := buildWhere(conds)
	rows, err := s.conn.Query(`SELECT `+jobColumns+` FROM jobs`+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", classify(err))
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return out, nil
}

// FindOneJob returns the first Job matching conds, or ErrNotFound.
func (s *Store) FindOneJob(conds ...Cond) (*model.Job, error) {
	jobs, err := s.FindJobs(conds...)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrNotFound
	}
	return jobs[0], nil
}

// CountJobs returns the number of Jobs matching conds.
func (s *Store) CountJobs(conds ...Cond) (int, error) {
	where, args := buildWhere(conds)
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM jobs`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", classify(err))
	}
	return count, nil
}

// UpdateJob rewrites every column of an existing Job row by id.
func (s *Store) UpdateJob(j *model.Job) error {
	return s.withTx(func(tx *sql.Tx) error {
		return updateJob(tx, j)
	})
}

func updateJob(ex execer, j *model.Job) error {
	requiresOutputsFrom, err := json.Marshal(j.RequiresOutputsFrom)
	if err != nil {
		return fmt.Errorf("failed to marshal requires_outputs_from: %w", err)
	}
	waitForJobIDs, err := json.Marshal(j.WaitForJobIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal wait_for_job_ids: %w", err)
	}
	outputSpec, err := json.Marshal(j.OutputSpec)
	if err != nil {
		return fmt.Errorf("failed to marshal output_spec: %w", err)
	}
	analysisScope, err := json.Marshal(j.AnalysisScope)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis_scope: %w", err)
	}

	query := `UPDATE jobs SET
		rap_id = ?, backend = ?, workspace = ?, action = ?, run_command = ?, repo_url = ?, commit_sha = ?,
		requires_outputs_from = ?, wait_for_job_ids = ?, output_spec = ?, requires_db = ?,
		state = ?, status_code = ?, status_message = ?, status_code_updated_at = ?,
		created_at = ?, updated_at = ?, started_at = ?, completed_at = ?, cancelled = ?,
		trace_context = ?, analysis_scope = ?, action_repo_url = ?, action_commit = ?
	WHERE id = ?`

	result, err := ex.Exec(query,
		j.RapID, j.Backend, j.Workspace, j.Action, j.RunCommand, j.RepoURL, j.Commit,
		string(requiresOutputsFrom), string(waitForJobIDs), string(outputSpec), j.RequiresDB,
		string(j.State), string(j.StatusCode), j.StatusMessage, j.StatusCodeUpdatedAt,
		j.CreatedAt, j.UpdatedAt, j.StartedAt, j.CompletedAt, j.Cancelled,
		j.TraceContext, string(analysisScope), j.ActionRepoURL, j.ActionCommit,
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateJobWhere applies patch (a column=value map, already using sql
// column names) to every Job matching conds, inside one transaction.
// Used by centralized transition setters that need to fan a change out
// to more than one row (e.g. cancellation cascades).
func (s *Store) UpdateJobWhere(patch map[string]any, conds ...Cond) (int64, error) {
	var affected int64
	err := s.withTx(func(tx *sql.Tx) error {
		set := make([]string, 0, len(patch))
		args := make([]any, 0, len(patch))
		for col, val := range patch {
			set = append(set, col+" = ?")
			args = append(args, val)
		}

		where, whereArgs := buildWhere(conds)
		args = append(args, whereArgs...)

		query := "UPDATE jobs SET " + strings.Join(set, ", ") + where
		result, err := tx.Exec(query, args...)
		if err != nil {
			return fmt.Errorf("failed to update jobs: %w", err)
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		return nil
	})
	return affected, err
}
