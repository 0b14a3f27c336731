package llm

import (
	"sync"
	"time"

	"github.com/Veraticus/spice-tally/internal/model"
)

const maxCacheEntries = 10000

// cacheEntry represents a cached label.
type cacheEntry struct {
	expiry time.Time
	label  model.Label
}

// labelCache provides thread-safe TTL caching of labels keyed by content hash.
// Expired entries are dropped lazily; there is no background goroutine.
type labelCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
}

// newLabelCache creates a new cache with the specified TTL. A negative TTL disables caching.
func newLabelCache(ttl time.Duration) *labelCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	return &labelCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get retrieves a label if it exists and hasn't expired.
func (c *labelCache) get(key string) (model.Label, bool) {
	if c.ttl < 0 {
		return "", false
	}

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists || c.now().After(entry.expiry) {
		return "", false
	}
	return entry.label, true
}

// set stores a label, purging expired entries when the cache grows large.
func (c *labelCache) set(key string, label model.Label) {
	if c.ttl < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) >= maxCacheEntries {
		for k, e := range c.entries {
			if now.After(e.expiry) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= maxCacheEntries {
			c.entries = make(map[string]cacheEntry)
		}
	}

	c.entries[key] = cacheEntry{label: label, expiry: now.Add(c.ttl)}
}

// size returns the number of entries in the cache.
func (c *labelCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
