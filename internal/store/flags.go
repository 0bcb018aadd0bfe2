package store

import (
	"database/sql"
	"fmt"

	"github.com/RevCBH/ragweb/internal/model"
)

// GetFlag retrieves a Flag by (name, backend). Returns ErrNotFound if
// no row matches — callers treat that the same as an unset flag.
func (s *Store) GetFlag(name, backend string) (*model.Flag, error) {
	f := &model.Flag{Name: name, Backend: backend}
	err := s.conn.QueryRow(
		`SELECT value, updated_at FROM flags WHERE name = ? AND backend = ?`, name, backend,
	).Scan(&f.Value, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flag %s/%s: %w", name, backend, classify(err))
	}
	return f, nil
}

// ListFlags returns every Flag set for backend.
func (s *Store) ListFlags(backend string) ([]*model.Flag, error) {
	rows, err := s.conn.Query(`SELECT name, value, updated_at FROM flags WHERE backend = ? ORDER BY name`, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags for %s: %w", backend, classify(err))
	}
	defer rows.Close()

	var out []*model.Flag
	for rows.Next() {
		f := &model.Flag{Backend: backend}
		if err := rows.Scan(&f.Name, &f.Value, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flags: %w", err)
	}
	return out, nil
}

// SetFlag upserts a (name, backend) -> value pair. updated_at only
// advances when the value actually changes; setting the same value
// again is a no-op on the timestamp (spec.md §3 "Flag" invariant).
func (s *Store) SetFlag(name, backend string, value *string, now int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		existing := &model.Flag{}
		err := tx.QueryRow(
			`SELECT value, updated_at FROM flags WHERE name = ? AND backend = ?`, name, backend,
		).Scan(&existing.Value, &existing.UpdatedAt)

		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(
				`INSERT INTO flags (name, backend, value, updated_at) VALUES (?, ?, ?, ?)`,
				name, backend, value, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert flag %s/%s: %w", name, backend, err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to read flag %s/%s: %w", name, backend, err)
		}

		if sameValue(existing.Value, value) {
			return nil
		}

		_, err = tx.Exec(
			`UPDATE flags SET value = ?, updated_at = ? WHERE name = ? AND backend = ?`,
			value, now, name, backend,
		)
		if err != nil {
			return fmt.Errorf("failed to update flag %s/%s: %w", name, backend, err)
		}
		return nil
	})
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ClearFlag removes a flag entirely.
func (s *Store) ClearFlag(name, backend string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM flags WHERE name = ? AND backend = ?`, name, backend)
		if err != nil {
			return fmt.Errorf("failed to clear flag %s/%s: %w", name, backend, err)
		}
		return nil
	})
}
