// Package cache stores rendered public pages keyed by route.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss   = errors.New("cache miss")
	ErrCacheClosed = errors.New("cache closed")
)

// Cacher is implemented by the in-memory and Redis backends.
type Cacher interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
	Close() error
}

// New returns a Redis cache when redisURL is set, otherwise an in-memory one.
func New(redisURL, prefix string, ttl time.Duration) (Cacher, error) {
	if redisURL == "" {
		return NewMemory(ttl), nil
	}
	return NewRedis(redisURL, prefix, ttl)
}
