package cachemanager

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/quickscale/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// NewInMemoryCacheManager creates a go-cache backed cache. useCase names the
// cache in log lines.
func NewInMemoryCacheManager[V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[V] {
	return &InMemoryCacheManager[V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// InMemoryCacheManager is the go-cache implementation of CacheManager.
type InMemoryCacheManager[V any] struct {
	useCase string
	cache   *gocache.Cache
	hits    int
	misses  int
}

var _ CacheManager[string] = (*InMemoryCacheManager[string])(nil)

// Get retrieves an item. A stored value of the wrong type counts as a miss.
func (c *InMemoryCacheManager[V]) Get(key string) (V, bool) {
	var zero V

	value, found := c.cache.Get(key)
	if !found {
		c.misses++
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		c.misses++
		return zero, false
	}
	c.hits++
	return v, true
}

// Set stores value under key for ttl.
func (c *InMemoryCacheManager[V]) Set(key string, value V, ttl time.Duration) {
	c.cache.Set(key, value, ttl)
}

// Delete removes keys.
func (c *InMemoryCacheManager[V]) Delete(keys ...string) {
	for _, key := range keys {
		c.cache.Delete(key)
	}
}

// Flush removes every entry.
func (c *InMemoryCacheManager[V]) Flush() {
	log.Debug(log.CatCache, "cache flushed", "cache", c.useCase, "entries", c.cache.ItemCount(),
		"hits", c.hits, "misses", c.misses)
	c.cache.Flush()
}

// Len returns the number of entries, including expired ones not yet cleaned up.
func (c *InMemoryCacheManager[V]) Len() int {
	return c.cache.ItemCount()
}

// Stats returns the hit and miss counts since creation.
func (c *InMemoryCacheManager[V]) Stats() (hits, misses int) {
	return c.hits, c.misses
}
