package activity

import (
	"slices"
	"sync"
	"time"

	"github.com/mtlprog/coincore/internal/coincore"
)

// Cache holds the last aggregate activity list. Every mutation goes through
// its mutex. Clear starts a new generation; results fetched under an older
// one are never stored.
type Cache struct {
	mu        sync.Mutex
	items     []coincore.ActivityItem
	updatedAt time.Time
	gen       uint64
}

// Generation returns the current cache generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Snapshot returns a copy of the cached items and when they were stored.
func (c *Cache) Snapshot() ([]coincore.ActivityItem, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items), c.updatedAt
}

// Fresh returns the cached items if there are any and they are younger than ttl.
func (c *Cache) Fresh(now time.Time, ttl time.Duration) ([]coincore.ActivityItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 || now.Sub(c.updatedAt) >= ttl {
		return nil, false
	}
	return slices.Clone(c.items), true
}

// Store records a network result fetched during generation gen. A non-empty
// result replaces the cache. An empty result leaves a non-empty cache
// untouched and returns its items, so a transient empty response never wipes
// good data. A result from an earlier generation is returned as is and not
// stored.
func (c *Cache) Store(items []coincore.ActivityItem, now time.Time, gen uint64) (result []coincore.ActivityItem, replaced bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return items, false
	}
	if len(items) == 0 {
		return slices.Clone(c.items), false
	}
	c.items = slices.Clone(items)
	c.updatedAt = now
	return items, true
}

// Evict removes the items with the given keys.
func (c *Cache) Evict(keys []coincore.ActivityKey) int {
	if len(keys) == 0 {
		return 0
	}
	drop := make(map[coincore.ActivityKey]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	before := len(c.items)
	c.items = slices.DeleteFunc(c.items, func(item coincore.ActivityItem) bool {
		_, ok := drop[coincore.KeyOf(item)]
		return ok
	})
	return before - len(c.items)
}

// Clear empties the cache and starts a new generation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.updatedAt = time.Time{}
	c.gen++
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
