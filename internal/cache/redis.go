// Package cache provides the best-effort, time-bounded short code lookup used
// on the hot redirect path. The store stays authoritative; a cache entry may
// be stale for up to its TTL and an unavailable cache only costs latency.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dsemenov/linkshrink/internal/entity"
)

const shortCodePrefix = "url:short_code:"

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(addr, password string, db, poolSize int) (*redis.Client, error) {
	const op = "cache.NewClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}

// Redis caches URL records as JSON values keyed by short code.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
	}
}

// Get returns the cached record for the short code, or (nil, nil) on a miss.
func (c *Redis) Get(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "cache.Redis.Get"

	data, err := c.client.Get(ctx, shortCodePrefix+shortCode).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get cached url: %w", op, err)
	}

	var url entity.URL
	if err := json.Unmarshal(data, &url); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal cached url: %w", op, err)
	}

	return &url, nil
}

// Set stores the record under its short code with the given TTL. Writes are
// idempotent overwrites, so concurrent cache fills for one code are safe.
func (c *Redis) Set(ctx context.Context, url *entity.URL, ttl time.Duration) error {
	const op = "cache.Redis.Set"

	data, err := json.Marshal(url)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal url: %w", op, err)
	}

	if err := c.client.Set(ctx, shortCodePrefix+url.ShortCode, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set cached url: %w", op, err)
	}

	return nil
}
