package caching

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type ReadOnlyCache interface {
	Get(ctx context.Context, key string, target any) error
}

type Cache interface {
	ReadOnlyCache
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UseCache returns the cached value for key, or calls load and caches its
// result. Any cache read failure is treated as a miss so an unavailable
// cache never fails the caller; write failures are ignored.
func UseCache[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var v T
	if c == nil {
		return load()
	}
	if err := c.Get(ctx, key, &v); err == nil {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	//nolint:errcheck
	c.Set(ctx, key, v, ttl)
	return v, nil
}

// IsMiss reports whether err means the key was not cached.
func IsMiss(err error) bool {
	return errors.Is(err, cache.ErrCacheMiss)
}

type CacheRedis struct {
	instance *cache.Cache
}

func (c *CacheRedis) Get(ctx context.Context, key string, target any) error {
	return c.instance.Get(ctx, key, target)
}

func (c *CacheRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.instance.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (c *CacheRedis) Delete(ctx context.Context, key string) error {
	err := c.instance.Delete(ctx, key)
	if IsMiss(err) {
		return nil
	}
	return err
}

const (
	defaultLocalSize = 10000
	defaultLocalTTL  = time.Minute
)

// NewCacheRedis caches in Redis. withLocalCache adds an in-process TinyLFU
// tier, which other instances cannot invalidate; leave it off when several
// processes share the Redis.
func NewCacheRedis(client redis.UniversalClient, withLocalCache bool) *CacheRedis {
	var localCache cache.LocalCache
	if withLocalCache {
		localCache = cache.NewTinyLFU(defaultLocalSize, defaultLocalTTL)
	}
	opts := &cache.Options{LocalCache: localCache}
	if client != nil {
		opts.Redis = client
	}
	return &CacheRedis{cache.New(opts)}
}

// NewLocal returns a process-local cache with no Redis tier, for
// single-instance deployments.
func NewLocal(size int, ttl time.Duration) *CacheRedis {
	return &CacheRedis{cache.New(&cache.Options{
		LocalCache: cache.NewTinyLFU(size, ttl),
	})}
}
