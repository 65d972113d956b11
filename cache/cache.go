// Package cache stores auxiliary lookup responses.
package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Service represents a generic cache service
type Service interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// New returns a memcache-backed service when addr is set, an in-process LRU
// otherwise.
func New(addr string, size int, ttl time.Duration) Service {
	if addr != "" {
		return NewMemcacheService(addr)
	}
	return NewLRUService(size, ttl)
}
