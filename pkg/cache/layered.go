package cache

import (
	"context"
	"encoding/json"
	"time"
)

// LayeredCache keeps JSON-encoded values in a bounded in-process TTL map in
// front of an optional shared Service (usually Redis). Without a backing
// Service it behaves as a pure in-memory cache.
type LayeredCache struct {
	mem     *TTL[string, []byte]
	backing Service
}

func NewLayeredCache(backing Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		mem:     NewTTL[string, []byte](cfg.MemoryTTL, WithMaxEntries(cfg.MemoryMaxSize)),
		backing: backing,
	}
}

// Set writes through to the backing Service first, then to memory.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if lc.backing != nil {
		if err := lc.backing.Set(ctx, key, data, expiration); err != nil {
			return err
		}
	}
	memTTL := expiration
	if memTTL <= 0 || memTTL > lc.mem.ttl {
		memTTL = lc.mem.ttl
	}
	lc.mem.SetWithTTL(key, data, memTTL)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := lc.mem.Get(key); ok {
		return json.Unmarshal(data, dest)
	}
	if lc.backing == nil {
		return ErrCacheMiss
	}

	var data []byte
	if err := lc.backing.Get(ctx, key, &data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return err
	}
	lc.mem.Set(key, data)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		lc.mem.Delete(k)
	}
	if lc.backing == nil {
		return nil
	}
	return lc.backing.Delete(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	if lc.backing == nil {
		return nil
	}
	return lc.backing.Close()
}
