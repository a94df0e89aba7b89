package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares one window counter per key across all instances of the
// service. INCR and EXPIRE run in a single pipeline, so concurrent requests
// for one key never lose counts.
type RedisLimiter struct {
	client *redis.Client
	name   string
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, name string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		name:   name,
		limit:  limit,
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	const op = "ratelimit.RedisLimiter.Allow"

	now := time.Now()
	windowStart := now.Truncate(l.window)

	// The window timestamp is part of the key; stale windows expire on their own.
	redisKey := fmt.Sprintf("ratelimit:%s:%s:%d", l.name, key, windowStart.Unix())

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("%s: failed to count request: %w", op, err)
	}

	retryAfter := windowStart.Add(l.window).Sub(now)

	return int(incr.Val()) <= l.limit, retryAfter, nil
}
