// Package store wraps the Redis primitives every authkit component shares:
// per-key TTL values, atomic counters, and set membership. It is the only
// place that talks to go-redis directly for counter/flag state, so error
// mapping (unavailable vs. absent) lives here once.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the Redis backend could not be reached or
// returned an unexpected failure. Callers must not treat it as "absent".
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound indicates the key does not exist.
var ErrNotFound = errors.New("key not found")

// Store exposes the atomic counter/flag operations used by the rate
// limiter, lockout tracker, code verifier, and revocation store. All
// methods are safe for concurrent use across process instances.
type Store struct {
	redis redis.UniversalClient
}

// New creates a Store backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Store {
	return &Store{redis: redisClient}
}

// Set writes value under key with the given TTL, overwriting any
// previous value.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes the given keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Increment atomically increments the counter under key and returns the
// post-increment value. The TTL is applied only when the increment
// created the key, which starts a fixed window without losing updates
// under contention.
func (s *Store) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 && ttl > 0 {
		if err := s.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}

// AddToSet adds members to the set under key and refreshes its TTL.
func (s *Store) AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsMember reports whether member is in the set under key.
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.redis.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// SetMembers returns every member of the set under key. A missing set
// yields an empty slice.
func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return members, nil
}

// TimeToLive returns the remaining TTL of key. Missing keys and keys
// without expiry both report ErrNotFound so callers cannot confuse a
// persistent key with a live windowed one.
func (s *Store) TimeToLive(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

// Client exposes the underlying Redis client for components that need
// scripting or transactions beyond the shared primitives.
func (s *Store) Client() redis.UniversalClient {
	return s.redis
}
