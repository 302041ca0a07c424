// Package cache provides the response cache used by the HTTP service.
// Values are stored as JSON. Redis backs it when configured; otherwise a
// no-op cache that always misses is used.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss is returned when the requested key is not cached.
	ErrMiss = errors.New("cache: key not found")
	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("cache: key cannot be empty")
	// ErrConnection is returned when the cache server cannot be reached.
	ErrConnection = errors.New("cache: connection failed")
)

// KeyCourseStats is the cache key of the per-course aggregate.
const KeyCourseStats = "gradesim:courses"

// Cache stores JSON-encoded values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at url (redis://[user:pass@]host:port/db)
// and pings it.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &Redis{client: client}, nil
}

// Get decodes the value stored at key into dest. A missing key returns ErrMiss.
func (c *Redis) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrKeyEmpty
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Set stores value at key. A zero ttl keeps the key until deleted.
func (c *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys.
func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Noop never stores anything.
type Noop struct{}

// Get always misses.
func (Noop) Get(_ context.Context, key string, _ any) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return ErrMiss
}

// Set discards the value.
func (Noop) Set(_ context.Context, key string, _ any, _ time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return nil
}

// Delete does nothing.
func (Noop) Delete(context.Context, ...string) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

// Open returns a Redis cache for a non-empty url and Noop otherwise.
func Open(ctx context.Context, url string) (Cache, error) {
	if url == "" {
		return Noop{}, nil
	}
	return NewRedis(ctx, url)
}
