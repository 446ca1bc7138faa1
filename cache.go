package insider

import (
	"context"
	"sync"
	"time"
)

// Store is the persisted cache tier for lookup results. Implementations
// own expiry: Get must never return a record older than the store's
// TTL, so callers treat any hit as valid.
type Store interface {
	Get(ctx context.Context, ticker string) (*LookupResult, bool, error)
	Put(ctx context.Context, ticker string, result *LookupResult) error
	Close() error
}

// memoryCache is a thread-safe in-process cache with TTL
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// get returns nil, false if the key is absent or expired
func (c *memoryCache) get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *memoryCache) set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *memoryCache) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
