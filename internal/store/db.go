// Package store provides typed, table-per-entity persistence for Job,
// Task, Flag and SavedRapRequest records over an embedded sqlite
// database, plus the predicate query sugar described in spec.md §4.1.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite connection with typed entity access.
type Store struct {
	conn *sql.DB
}

// Open creates or opens a sqlite database at path, enables WAL mode and
// foreign keys, and runs migrations up to the latest schema version.
func Open(path string) (*Store, error) {
	// _txlock=immediate makes every sql.Tx opened via conn.Begin() issue
	// BEGIN IMMEDIATE instead of BEGIN DEFERRED, so the write lock is
	// acquired up front rather than upgraded mid-transaction (spec.md
	// §4.1's "Engine requirements").
	conn, err := sql.Open("sqlite", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer process, concurrent readers permitted (spec.md §4.1).
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{conn: conn}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// schemaVersion returns the current user_version pragma value.
func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// migration is one ordered, idempotent schema step.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS jobs (
    id                      TEXT PRIMARY KEY,
    rap_id                  TEXT NOT NULL,
    backend                 TEXT NOT NULL,
    workspace               TEXT NOT NULL,
    action                  TEXT NOT NULL,
    run_command             TEXT NOT NULL DEFAULT '',
    repo_url                TEXT NOT NULL,
    commit_sha              TEXT NOT NULL,
    requires_outputs_from   TEXT NOT NULL DEFAULT '[]',
    wait_for_job_ids        TEXT NOT NULL DEFAULT '[]',
    output_spec             TEXT NOT NULL DEFAULT '{}',
    requires_db             INTEGER NOT NULL DEFAULT 0,
    state                   TEXT NOT NULL,
    status_code             TEXT NOT NULL,
    status_message          TEXT NOT NULL DEFAULT '',
    status_code_updated_at  INTEGER NOT NULL DEFAULT 0,
    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL,
    started_at              INTEGER,
    completed_at            INTEGER,
    cancelled               INTEGER NOT NULL DEFAULT 0,
    trace_context           TEXT NOT NULL DEFAULT '',
    analysis_scope          TEXT NOT NULL DEFAULT '{}',
    action_repo_url         TEXT,
    action_commit           TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_backend_workspace_action ON jobs(backend, workspace, action);
CREATE INDEX IF NOT EXISTS idx_jobs_rap_id ON jobs(rap_id);

CREATE TABLE IF NOT EXISTS tasks (
    id                  TEXT PRIMARY KEY,
    backend             TEXT NOT NULL,
    type                TEXT NOT NULL,
    definition          TEXT NOT NULL DEFAULT '',
    active              INTEGER NOT NULL DEFAULT 1,
    created_at          INTEGER NOT NULL,
    finished_at         INTEGER,
    attributes          TEXT NOT NULL DEFAULT '{}',
    agent_stage         TEXT NOT NULL DEFAULT '',
    agent_complete      INTEGER NOT NULL DEFAULT 0,
    agent_results       TEXT NOT NULL DEFAULT '',
    agent_timestamp_ns  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_tasks_backend_active ON tasks(backend, active);
CREATE INDEX IF NOT EXISTS idx_tasks_type ON tasks(type);

CREATE TABLE IF NOT EXISTS flags (
    name        TEXT NOT NULL,
    backend     TEXT NOT NULL,
    value       TEXT,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (name, backend)
);

CREATE TABLE IF NOT EXISTS saved_rap_requests (
    rap_id      TEXT PRIMARY KEY,
    original    TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);
`,
	},
}

// migrate applies every migration with version > the current
// user_version, each wrapped in its own transaction that also bumps the
// pragma (spec.md §6.4).
func (s *Store) migrate() error {
	current, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to bump user_version to %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

// EnsureValidDB errors if the on-disk schema is behind the latest
// migration this binary knows about (spec.md §4.1 "ensure_valid_db").
func (s *Store) EnsureValidDB() error {
	current, err := s.schemaVersion()
	if err != nil {
		return err
	}
	latest := migrations[len(migrations)-1].version
	if current < latest {
		return fmt.Errorf("database schema out of date: have version %d, need %d", current, latest)
	}
	return nil
}
