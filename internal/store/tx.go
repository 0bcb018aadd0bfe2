package store

import "database/sql"

// execer is satisfied by both *sql.DB and *sql.Tx, letting the typed
// accessors run either standalone or inside withTx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction. The connection DSN carries
// _txlock=immediate (see Open), so this is a BEGIN IMMEDIATE under the
// hood: the write lock is acquired at BEGIN rather than on first write,
// avoiding the upgrade deadlock a bare BEGIN DEFERRED can hit under
// concurrent writers (spec.md §4.1). Commits on success, rolls back and
// returns the classified error otherwise.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return classify(err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}
