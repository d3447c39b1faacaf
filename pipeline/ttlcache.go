package pipeline

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// TTLCache is a concurrency-safe map with per-entry TTLs and a periodic
// sweep. It backs the response cache; the settings cache has its own
// fallback-aware wrapper in the settings package.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]ttlEntry[V]
	now     func() time.Time
}

// NewTTLCache returns an empty cache.
func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries: make(map[K]ttlEntry[V]),
		now:     time.Now,
	}
}

// Get returns the live value for k, if any. Expired entries read as absent
// (eviction itself is left to Sweep).
func (c *TTLCache[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores v under k for ttl.
func (c *TTLCache[K, V]) Put(k K, v V, ttl time.Duration) {
	now := c.now()
	c.mu.Lock()
	c.entries[k] = ttlEntry[V]{value: v, storedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// Sweep evicts expired entries, plus any entry older than maxAge regardless
// of its own TTL. maxAge bounds memory when channels configure very long
// TTLs; maxAge <= 0 disables the absolute bound.
func (c *TTLCache[K, V]) Sweep(maxAge time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) || (maxAge > 0 && now.Sub(e.storedAt) > maxAge) {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of stored entries including not-yet-swept expired ones.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
