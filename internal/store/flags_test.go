package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/model"
)

func strPtr(s string) *string { return &s }

func TestGetFlagNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetFlag(model.FlagPaused, "tpp")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetFlagInsertsNewRow(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetFlag(model.FlagPaused, "tpp", strPtr(model.FlagValueTrue), 1000))

	got, err := s.GetFlag(model.FlagPaused, "tpp")
	require.NoError(t, err)
	require.Equal(t, model.FlagValueTrue, *got.Value)
	require.Equal(t, int64(1000), got.UpdatedAt)
}

func TestSetFlagPreservesTimestampWhenValueUnchanged(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetFlag(model.FlagLastSeenAt, "tpp", strPtr("100"), 1000))
	require.NoError(t, s.SetFlag(model.FlagLastSeenAt, "tpp", strPtr("100"), 2000))

	got, err := s.GetFlag(model.FlagLastSeenAt, "tpp")
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.UpdatedAt, "unchanged value must not advance updated_at")
}

func TestSetFlagAdvancesTimestampWhenValueChanges(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetFlag(model.FlagLastSeenAt, "tpp", strPtr("100"), 1000))
	require.NoError(t, s.SetFlag(model.FlagLastSeenAt, "tpp", strPtr("200"), 2000))

	got, err := s.GetFlag(model.FlagLastSeenAt, "tpp")
	require.NoError(t, err)
	require.Equal(t, "200", *got.Value)
	require.Equal(t, int64(2000), got.UpdatedAt)
}

func TestListFlagsScopedToBackend(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetFlag(model.FlagPaused, "tpp", strPtr(model.FlagValueTrue), 1000))
	require.NoError(t, s.SetFlag(model.FlagPaused, "emis", strPtr(model.FlagValueTrue), 1000))

	flags, err := s.ListFlags("tpp")
	require.NoError(t, err)
	require.Len(t, flags, 1)
}

func TestClearFlag(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetFlag(model.FlagPaused, "tpp", strPtr(model.FlagValueTrue), 1000))
	require.NoError(t, s.ClearFlag(model.FlagPaused, "tpp"))

	_, err := s.GetFlag(model.FlagPaused, "tpp")
	require.ErrorIs(t, err, ErrNotFound)
}
