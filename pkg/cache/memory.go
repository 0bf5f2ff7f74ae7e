package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache implements Service on a size-bounded LRU with a shared TTL.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize: 1000,
		TTL:     10 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &MemoryCache{lru: expirable.NewLRU[string, []byte](cfg.MaxSize, nil, cfg.TTL)}
}

// Set stores value. The per-call expiration is ignored; entries share the
// TTL given at construction.
func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	mc.lru.Add(key, data)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := mc.lru.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.lru.Remove(key)
	}
	return nil
}

// Len reports the number of live entries.
func (mc *MemoryCache) Len() int {
	return mc.lru.Len()
}

func (mc *MemoryCache) Close() error {
	mc.lru.Purge()
	return nil
}

var _ Service = (*MemoryCache)(nil)
