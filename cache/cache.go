// Package cache memoizes query results keyed by (function id, fingerprint of
// the canonical parameters). Entries hold the computed value only; a hit returns
// the very value stored, so callers can detect changes by identity.
package cache

import (
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cloudx-io/opentender/core"
)

// Stats reports cache activity since creation.
type Stats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Entries    int    `json:"entries"`
	Generation uint64 `json:"generation"`
	Enabled    bool   `json:"enabled"`
}

type entry struct {
	generation uint64
	value      any
}

// Cache is safe for concurrent use. Concurrent misses on the same key share one
// computation.
type Cache struct {
	enabled bool

	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64

	group  singleflight.Group
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New returns a cache. A disabled cache always computes.
func New(enabled bool) *Cache {
	return &Cache{enabled: enabled, entries: make(map[string]entry)}
}

// Key builds the cache key for functionID and params.
func Key(functionID string, params map[string]any) (string, error) {
	return core.Fingerprint(functionID, params)
}

// Memoize returns the cached value for key, computing and storing it on a miss.
// A value computed while InvalidateAll ran is returned to its caller but not
// stored.
func (c *Cache) Memoize(key string, compute func() (any, error)) (any, error) {
	if !c.enabled {
		c.misses.Add(1)
		return compute()
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	gen := c.generation
	c.mu.RUnlock()
	if ok && e.generation == gen {
		c.hits.Add(1)
		return e.value, nil
	}

	c.misses.Add(1)
	v, err, _ := c.group.Do(flightKey(key, gen), func() (any, error) {
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation == gen {
			if existing, ok := c.entries[key]; ok && existing.generation == gen {
				return existing.value, nil
			}
			c.entries[key] = entry{generation: gen, value: value}
		}
		return value, nil
	})
	return v, err
}

// flightKey separates in-flight computations of different generations.
func flightKey(key string, gen uint64) string {
	return key + "@" + strconv.FormatUint(gen, 10)
}

// InvalidateAll drops every entry and bumps the generation.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[string]entry)
}

// Stats returns a point-in-time view of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Entries:    len(c.entries),
		Generation: c.generation,
		Enabled:    c.enabled,
	}
}

// Get memoizes a typed computation.
func Get[T any](c *Cache, key string, compute func() (T, error)) (T, error) {
	v, err := c.Memoize(key, func() (any, error) { return compute() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
