// Package kvstore abstracts the external key/value store used by the
// summary cache and the telemetry sink. Keys are namespaced by prefix
// (ai_summary_*, ai_telemetry_*); the store itself is prefix-agnostic.
package kvstore

import (
	"context"
	"time"

	pkgredis "github.com/shopsense/core/internal/pkg/redis"
)

// Store is a minimal string key/value store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value. A zero ttl means no store-side expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RedisStore backs Store with Redis.
type RedisStore struct {
	rc *pkgredis.Client
}

func NewRedisStore(rc *pkgredis.Client) *RedisStore {
	return &RedisStore{rc: rc}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rc.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	return val, val != "", nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rc.Set(ctx, key, value, ttl)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rc.Del(ctx, key)
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.rc.Keys(ctx, prefix)
}
