package celer

import (
	"context"
	"sync"
	"time"
)

// Cache stores serialized compiled statements keyed by a fetch-specification
// fingerprint. Implementations may be backed by anything byte-oriented
// (process memory, Redis, Memcached); dialect/sql provides the encoding.
type Cache interface {
	// Get retrieves a value from the cache.
	// It returns nil, nil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// A zero ttl means the value does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// MapCache is a minimal in-process Cache backed by a map. It honors TTLs
// lazily on Get and is safe for concurrent use.
type MapCache struct {
	mu sync.Mutex
	m  map[string]mapEntry
}

type mapEntry struct {
	b   []byte
	exp time.Time
}

// NewMapCache returns an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{m: make(map[string]mapEntry)}
}

// Get implements Cache.
func (c *MapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(c.m, key)
		return nil, nil
	}
	return e.b, nil
}

// Set implements Cache.
func (c *MapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := mapEntry{b: value}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
	return nil
}

// Delete implements Cache.
func (c *MapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// Clear implements Cache.
func (c *MapCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]mapEntry)
	return nil
}

var _ Cache = (*MapCache)(nil)
