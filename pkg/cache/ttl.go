package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value    V
	expireAt time.Time
	storedAt time.Time
}

// TTL is a size-bounded in-memory map whose entries expire after a fixed
// lifetime. Expired entries are purged on read; there is no background sweeper.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]ttlEntry[V]
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type TTLOption func(*ttlConfig)

type ttlConfig struct {
	maxSize int
	now     func() time.Time
}

// WithMaxEntries bounds the number of stored entries.
func WithMaxEntries(n int) TTLOption {
	return func(c *ttlConfig) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithTTLClock replaces time.Now, mostly for tests.
func WithTTLClock(now func() time.Time) TTLOption {
	return func(c *ttlConfig) { c.now = now }
}

func NewTTL[K comparable, V any](ttl time.Duration, opts ...TTLOption) *TTL[K, V] {
	cfg := &ttlConfig{maxSize: 1000, now: time.Now}
	for _, o := range opts {
		o(cfg)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTL[K, V]{
		entries: make(map[K]ttlEntry[V]),
		ttl:     ttl,
		maxSize: cfg.maxSize,
		now:     cfg.now,
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !now.Before(e.expireAt) {
		c.purgeLocked(now)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value with the default lifetime.
func (c *TTL[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *TTL[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.purgeLocked(now)
		if len(c.entries) >= c.maxSize {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = ttlEntry[V]{value: value, expireAt: now.Add(ttl), storedAt: now}
}

func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included until the next purge.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[K, V]) purgeLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expireAt) {
			delete(c.entries, k)
		}
	}
}

func (c *TTL[K, V]) evictOldestLocked() {
	var (
		oldestKey  K
		oldestTime time.Time
		found      bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldestTime) {
			oldestKey, oldestTime, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
