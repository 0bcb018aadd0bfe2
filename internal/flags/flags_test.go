package flags

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil)
}

func TestGetMissingFlagWithoutRedis(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), model.FlagPaused, "tpp")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	val := model.FlagValueTrue
	require.NoError(t, c.Set(context.Background(), model.FlagPaused, "tpp", &val, 1000))

	got, err := c.Get(context.Background(), model.FlagPaused, "tpp")
	require.NoError(t, err)
	require.Equal(t, model.FlagValueTrue, *got.Value)
}

func TestTouchLastSeenAt(t *testing.T) {
	c := newTestCache(t)
	now := time.Unix(1700000000, 0)
	require.NoError(t, c.TouchLastSeenAt(context.Background(), "tpp", now))

	got, err := c.Get(context.Background(), model.FlagLastSeenAt, "tpp")
	require.NoError(t, err)
	require.NotNil(t, got.Value)
}

func TestIsPausedDefaultsFalse(t *testing.T) {
	c := newTestCache(t)
	paused, err := c.IsPaused(context.Background(), "tpp")
	require.NoError(t, err)
	require.False(t, paused)
}

func TestIsPausedAfterSet(t *testing.T) {
	c := newTestCache(t)
	val := model.FlagValueTrue
	require.NoError(t, c.Set(context.Background(), model.FlagPaused, "tpp", &val, 1000))

	paused, err := c.IsPaused(context.Background(), "tpp")
	require.NoError(t, err)
	require.True(t, paused)
}

func TestManualDBMaintenance(t *testing.T) {
	c := newTestCache(t)
	on, err := c.ManualDBMaintenance(context.Background(), "tpp")
	require.NoError(t, err)
	require.False(t, on)

	val := model.FlagValueManualDBMaintOn
	require.NoError(t, c.Set(context.Background(), model.FlagManualDBMaintenance, "tpp", &val, 1000))

	on, err = c.ManualDBMaintenance(context.Background(), "tpp")
	require.NoError(t, err)
	require.True(t, on)
}

func TestModeDefaultsEmpty(t *testing.T) {
	c := newTestCache(t)
	mode, err := c.Mode(context.Background(), "tpp")
	require.NoError(t, err)
	require.Equal(t, "", mode)
}

func TestList(t *testing.T) {
	c := newTestCache(t)
	val := model.FlagValueTrue
	require.NoError(t, c.Set(context.Background(), model.FlagPaused, "tpp", &val, 1000))

	flags, err := c.List("tpp")
	require.NoError(t, err)
	require.Len(t, flags, 1)
}
