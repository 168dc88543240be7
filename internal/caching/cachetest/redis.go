// Package cachetest provides an in-memory stand-in for the Redis commands
// the cache tier issues, so several caches can share one backing store in
// tests.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements the string commands used by go-redis/cache. Any other
// command panics through the nil embedded client. TTLs are ignored.
type Redis struct {
	redis.UniversalClient

	mu   sync.Mutex
	data map[string]string
}

func NewRedis() *Redis {
	return &Redis{data: make(map[string]string)}
}

func (r *Redis) Get(ctx context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = encode(value)
	return redis.NewStatusResult("OK", nil)
}

func (r *Redis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	r.data[key] = encode(value)
	return redis.NewBoolResult(true, nil)
}

func (r *Redis) SetXX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	r.data[key] = encode(value)
	return redis.NewBoolResult(true, nil)
}

func (r *Redis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := r.data[k]; ok {
			delete(r.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Len returns the number of stored keys.
func (r *Redis) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func encode(value any) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
