package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Resource names a cacheable backend read.
type Resource string

const (
	ResourceCards       Resource = "available_cards"
	ResourcePlayerCount Resource = "player_count"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// ResourceCache is a per-resource TTL cache for read-mostly backend calls.
// Resources without a declared TTL are never cached.
type ResourceCache struct {
	clock   clockwork.Clock
	ttl     map[Resource]time.Duration
	mu      sync.Mutex
	entries map[Resource]cacheEntry
}

func NewResourceCache(clock clockwork.Clock, ttl map[Resource]time.Duration) *ResourceCache {
	declared := make(map[Resource]time.Duration, len(ttl))
	for r, d := range ttl {
		declared[r] = d
	}
	return &ResourceCache{
		clock:   clock,
		ttl:     declared,
		entries: make(map[Resource]cacheEntry),
	}
}

func (c *ResourceCache) Get(r Resource) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[r]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expires) {
		delete(c.entries, r)
		return nil, false
	}
	return entry.value, true
}

func (c *ResourceCache) Put(r Resource, value any) {
	ttl := c.ttl[r]
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[r] = cacheEntry{value: value, expires: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *ResourceCache) Invalidate(r Resource) {
	c.mu.Lock()
	delete(c.entries, r)
	c.mu.Unlock()
}

// Clear drops every entry. Called on room teardown.
func (c *ResourceCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[Resource]cacheEntry)
	c.mu.Unlock()
}

// cachedFetch serves r from the cache or calls fetch and stores a successful result.
func cachedFetch[T any](ctx context.Context, c *ResourceCache, r Resource, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(r); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Put(r, v)
	return v, nil
}
