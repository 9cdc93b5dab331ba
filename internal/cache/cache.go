// Package cache provides the process-local TTL key/value cache used to
// memoize URL existence probes, scraped navigation links, and finished
// translations.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTL is a concurrency-safe cache with per-entry expiry. Expired entries
// are swept in the background on the cleanup interval.
type TTL struct {
	c *gocache.Cache
}

// New creates a cache. defaultTTL applies when Set is called with a zero
// ttl; cleanupInterval controls how often expired entries are purged.
func New(defaultTTL, cleanupInterval time.Duration) *TTL {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &TTL{c: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the value for key and whether it is present and unexpired.
func (t *TTL) Get(key string) (any, bool) {
	return t.c.Get(key)
}

// Set stores value under key for ttl. A zero ttl uses the cache default.
func (t *TTL) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	t.c.Set(key, value, ttl)
}

// Delete removes key if present.
func (t *TTL) Delete(key string) {
	t.c.Delete(key)
}

// Len returns the number of entries, including any not yet swept.
func (t *TTL) Len() int {
	return t.c.ItemCount()
}
