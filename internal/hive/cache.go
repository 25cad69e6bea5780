package hive

import (
	"context"
	"time"

	"github.com/allegro/bigcache/v3"
)

// ResponseCache stores raw discussion results keyed by query.
type ResponseCache interface {
	Get(key string) ([]byte, error)
	Set(key string, entry []byte) error
}

// BigCache is a ResponseCache whose entries expire after a fixed lifetime.
type BigCache struct {
	cache *bigcache.BigCache
}

// NewBigCache constructs an in-process cache with the provided entry lifetime.
func NewBigCache(ctx context.Context, lifetime time.Duration) (*BigCache, error) {
	cfg := bigcache.DefaultConfig(lifetime)
	cfg.CleanWindow = lifetime
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &BigCache{cache: cache}, nil
}

func (c *BigCache) Get(key string) ([]byte, error) {
	return c.cache.Get(key)
}

func (c *BigCache) Set(key string, entry []byte) error {
	return c.cache.Set(key, entry)
}

// Close releases the cache's background cleaner.
func (c *BigCache) Close() error {
	return c.cache.Close()
}
