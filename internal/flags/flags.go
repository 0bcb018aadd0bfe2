// Package flags layers a redis read-through cache over the sqlite Flag
// table, so repeated flag reads (paused, mode, manual-db-maintenance)
// can be served from redis. Every write, including the `last-seen-at`
// stamp on each agentrpc poll, still goes to sqlite first.
package flags

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RevCBH/ragweb/internal/model"
	"github.com/RevCBH/ragweb/internal/store"
)

// Store is the sqlite-backed flag table this cache fronts.
type Store interface {
	GetFlag(name, backend string) (*model.Flag, error)
	ListFlags(backend string) ([]*model.Flag, error)
	SetFlag(name, backend string, value *string, now int64) error
	ClearFlag(name, backend string) error
}

// Cache fronts a Store with an optional redis client. When client is
// nil every call falls straight through to the sqlite store — redis is
// an accelerator, never a source of truth.
type Cache struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
}

// New builds a Cache. client may be nil to disable the redis fast path.
func New(s Store, client *redis.Client) *Cache {
	return &Cache{store: s, client: client, ttl: 30 * time.Second}
}

func cacheKey(name, backend string) string {
	return fmt.Sprintf("flag:%s:%s", backend, name)
}

// Get reads a flag, preferring the redis cache when present.
func (c *Cache) Get(ctx context.Context, name, backend string) (*model.Flag, error) {
	if c.client != nil {
		if cached, err := c.readCached(ctx, name, backend); err == nil {
			return cached, nil
		}
	}

	f, err := c.store.GetFlag(name, backend)
	if err != nil {
		return nil, err
	}
	c.writeCached(ctx, f)
	return f, nil
}

func (c *Cache) readCached(ctx context.Context, name, backend string) (*model.Flag, error) {
	val, err := c.client.Get(ctx, cacheKey(name, backend)).Result()
	if err != nil {
		return nil, err
	}
	return &model.Flag{Name: name, Backend: backend, Value: &val}, nil
}

func (c *Cache) writeCached(ctx context.Context, f *model.Flag) {
	if c.client == nil || f.Value == nil {
		return
	}
	c.client.Set(ctx, cacheKey(f.Name, f.Backend), *f.Value, c.ttl)
}

// Set writes through to sqlite first (it is authoritative), then
// refreshes the cache entry on success.
func (c *Cache) Set(ctx context.Context, name, backend string, value *string, now int64) error {
	if err := c.store.SetFlag(name, backend, value, now); err != nil {
		return err
	}
	if c.client != nil {
		if value == nil {
			c.client.Del(ctx, cacheKey(name, backend))
		} else {
			c.client.Set(ctx, cacheKey(name, backend), *value, c.ttl)
		}
	}
	return nil
}

// TouchLastSeenAt stamps the `last-seen-at` flag to now, the side
// effect of every `GET /{backend}/tasks/` poll (spec.md §6.3). Like
// every Set, it writes sqlite first and then refreshes the redis entry.
func (c *Cache) TouchLastSeenAt(ctx context.Context, backend string, now time.Time) error {
	ts := now.UTC().Format(time.RFC3339)
	return c.Set(ctx, model.FlagLastSeenAt, backend, &ts, now.Unix())
}

// IsPaused reports whether the `paused` flag is set for backend.
func (c *Cache) IsPaused(ctx context.Context, backend string) (bool, error) {
	f, err := c.Get(ctx, model.FlagPaused, backend)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Value != nil && *f.Value == model.FlagValueTrue, nil
}

// Mode returns the `mode` flag's value for backend, or "" when unset.
func (c *Cache) Mode(ctx context.Context, backend string) (string, error) {
	f, err := c.Get(ctx, model.FlagMode, backend)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if f.Value == nil {
		return "", nil
	}
	return *f.Value, nil
}

// ManualDBMaintenance reports whether `manual-db-maintenance` is on.
func (c *Cache) ManualDBMaintenance(ctx context.Context, backend string) (bool, error) {
	f, err := c.Get(ctx, model.FlagManualDBMaintenance, backend)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Value != nil && *f.Value == model.FlagValueManualDBMaintOn, nil
}

// List returns every flag set for backend, always from sqlite (an
// operator inspecting flags wants the authoritative view, not a cache
// that might be mid-TTL).
func (c *Cache) List(backend string) ([]*model.Flag, error) {
	return c.store.ListFlags(backend)
}
