package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RevCBH/ragweb/internal/model"
)

const taskColumns = `
	id, backend, type, definition, active, created_at, finished_at,
	attributes, agent_stage, agent_complete, agent_results, agent_timestamp_ns
`

// ErrActiveTaskExists is returned by InsertTask when a Job already has
// an active RUNJOB or CANCELJOB task (spec.md §3 "Task" invariant: at
// most one active task of either kind per job).
var ErrActiveTaskExists = fmt.Errorf("store: an active task already exists for this job")

// InsertTask inserts a new Task row, refusing to create a second active
// RUNJOB/CANCELJOB for the same job (task ids are "<job_id>-NNN", so the
// job id is recovered from the id prefix up to the last '-').
func (s *Store) InsertTask(t *model.Task) error {
	return s.withTx(func(tx *sql.Tx) error {
		if t.Active && (t.Type == model.TaskRunJob || t.Type == model.TaskCancelJob) {
			jobID := jobIDFromTaskID(t.ID)
			var count int
			err := tx.QueryRow(
				`SELECT COUNT(*) FROM tasks WHERE active = 1 AND (type = ? OR type = ?) AND id GLOB ?`,
				model.TaskRunJob, model.TaskCancelJob, jobID+"-*",
			).Scan(&count)
			if err != nil {
				return fmt.Errorf("failed to check active tasks for job %s: %w", jobID, err)
			}
			if count > 0 {
				return ErrActiveTaskExists
			}
		}
		return insertTask(tx, t)
	})
}

// jobIDFromTaskID recovers the job id a task id was built from.
// RUNJOB ids are "<job_id>-NNN" (model.RunJobTaskID); CANCELJOB ids are
// "<runjob_task_id>-cancel" (model.CancelJobTaskID). Job ids themselves
// are hex digests (model.NewJobID) and never contain '-', so stripping
// one or both known suffixes is unambiguous.
func jobIDFromTaskID(taskID string) string {
	id := strings.TrimSuffix(taskID, "-cancel")
	if i := strings.LastIndexByte(id, '-'); i >= 0 && len(id)-i-1 == 3 {
		id = id[:i]
	}
	return id
}

func insertTask(ex execer, t *model.Task) error {
	attributes, err := json.Marshal(t.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = ex.Exec(query,
		t.ID, t.Backend, string(t.Type), t.Definition, t.Active, t.CreatedAt, t.FinishedAt,
		string(attributes), t.AgentStage, t.AgentComplete, t.AgentResults, t.AgentTimestampNS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", t.ID, classify(err))
	}
	return nil
}

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	t := &model.Task{}
	var taskType, attributes string

	err := row.Scan(
		&t.ID, &t.Backend, &taskType, &t.Definition, &t.Active, &t.CreatedAt, &t.FinishedAt,
		&attributes, &t.AgentStage, &t.AgentComplete, &t.AgentResults, &t.AgentTimestampNS,
	)
	if err != nil {
		return nil, err
	}

	t.Type = model.TaskType(taskType)
	if err := json.Unmarshal([]byte(attributes), &t.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	return t, nil
}

// GetTask retrieves a Task by id. Returns ErrNotFound if no row matches.
func (s *Store) GetTask(id string) (*model.Task, error) {
	row := s.conn.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return t, nil
}

// FindTasks returns every Task matching all of conds, ordered by
// created_at so DBSTATUS-before-RUNJOB sorting (spec.md §4.4.1) can be
// layered on by the caller.
func (s *Store) FindTasks(conds ...Cond) ([]*model.Task, error) {
	where, args := buildWhere(conds)
	rows, err := s.conn.Query(`SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", classify(err))
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return out, nil
}

// ExistsActiveTask reports whether job jobID has an active RUNJOB or
// CANCELJOB task outstanding.
func (s *Store) ExistsActiveTask(jobID string) (bool, error) {
	var count int
	err := s.conn.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE active = 1 AND (type = ? OR type = ?) AND id GLOB ?`,
		model.TaskRunJob, model.TaskCancelJob, jobID+"-*",
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check active tasks for job %s: %w", jobID, classify(err))
	}
	return count > 0, nil
}

// UpdateTask rewrites every column of an existing Task row by id.
func (s *Store) UpdateTask(t *model.Task) error {
	return s.withTx(func(tx *sql.Tx) error {
		return updateTask(tx, t)
	})
}

func updateTask(ex execer, t *model.Task) error {
	attributes, err := json.Marshal(t.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	query := `UPDATE tasks SET
		backend = ?, type = ?, definition = ?, active = ?, created_at = ?, finished_at = ?,
		attributes = ?, agent_stage = ?, agent_complete = ?, agent_results = ?, agent_timestamp_ns = ?
	WHERE id = ?`

	result, err := ex.Exec(query,
		t.Backend, string(t.Type), t.Definition, t.Active, t.CreatedAt, t.FinishedAt,
		string(attributes), t.AgentStage, t.AgentComplete, t.AgentResults, t.AgentTimestampNS,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID, classify(err))
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

// DeactivateTask marks a task inactive and stamps finished_at, used
// when a CANCELJOB supersedes its paired RUNJOB (spec.md §4.3.4).
func (s *Store) DeactivateTask(id string, finishedAt int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`UPDATE tasks SET active = 0, finished_at = ? WHERE id = ?`, finishedAt, id)
		if err != nil {
			return fmt.Errorf("failed to deactivate task %s: %w", id, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}
