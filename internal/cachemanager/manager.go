// Package cachemanager caches rendered output keyed by the inputs that
// produced it.
package cachemanager

import "time"

// CacheManager is a string-keyed cache with per-entry expiry.
type CacheManager[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(keys ...string)
	Flush()
	Len() int
}
