package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUService is an in-process cache bounded by size, with one TTL for all
// entries. Per-call expirations are capped by that TTL.
type LRUService struct {
	lru *expirable.LRU[string, entry]
}

type entry struct {
	value   []byte
	expires time.Time
}

// NewLRUService creates a cache holding at most size entries for ttl.
func NewLRUService(size int, ttl time.Duration) *LRUService {
	if size <= 0 {
		size = 128
	}
	return &LRUService{lru: expirable.NewLRU[string, entry](size, nil, ttl)}
}

func (l *LRUService) Get(key string) ([]byte, error) {
	e, ok := l.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		l.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

func (l *LRUService) Set(key string, value []byte, expiration time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if expiration > 0 {
		e.expires = time.Now().Add(expiration)
	}
	l.lru.Add(key, e)
	return nil
}

func (l *LRUService) Delete(key string) error {
	l.lru.Remove(key)
	return nil
}
