package store

import (
	"database/sql"
	"fmt"

	"github.com/RevCBH/ragweb/internal/model"
)

// SaveRapRequest archives the original client request JSON for later
// telemetry enrichment, keyed by rap_id (spec.md §3 "SavedRapRequest").
// Re-saving the same rap_id overwrites the prior archive.
func (s *Store) SaveRapRequest(r *model.SavedRapRequest) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO saved_rap_requests (rap_id, original, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(rap_id) DO UPDATE SET original = excluded.original, created_at = excluded.created_at`,
			r.RapID, []byte(r.Original), r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save rap request %s: %w", r.RapID, err)
		}
		return nil
	})
}

// GetSavedRapRequest retrieves the archived request for rapID. Returns
// ErrNotFound if none was ever saved.
func (s *Store) GetSavedRapRequest(rapID string) (*model.SavedRapRequest, error) {
	r := &model.SavedRapRequest{RapID: rapID}
	var original []byte
	err := s.conn.QueryRow(
		`SELECT original, created_at FROM saved_rap_requests WHERE rap_id = ?`, rapID,
	).Scan(&original, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saved rap request %s: %w", rapID, classify(err))
	}
	r.Original = original
	return r, nil
}
