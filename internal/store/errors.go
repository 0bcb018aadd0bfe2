package store

import (
	"errors"
	"strings"
)

// ErrLocked is returned in place of the underlying sqlite error whenever
// a write collides with another writer. The Controller/Agent loops
// treat it as transient and simply retry next tick (spec.md §7 class 1).
var ErrLocked = errors.New("store: database is locked")

// ErrNotFound is returned by the single-row accessors when no row
// matches.
var ErrNotFound = errors.New("store: not found")

// classify rewrites sqlite's locking errors into ErrLocked so callers
// can use errors.Is instead of string matching.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return ErrLocked
	}
	return err
}
