package caching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "resthub:ratelimit:"

// RateLimiter counts attempts per key in a fixed window.
type RateLimiter interface {
	// Allow records one attempt and reports whether it is within limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset forgets every attempt recorded for key.
	Reset(ctx context.Context, key string) error
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) RateLimiter {
	return &redisRateLimiter{client: client, limit: limit, window: window}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	cacheKey := rateLimitPrefix + key
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit: %w", err)
	}

	// The window starts at the first attempt.
	if count == 1 {
		if err := r.client.Expire(ctx, cacheKey, r.window).Err(); err != nil {
			return false, fmt.Errorf("setting rate limit window: %w", err)
		}
	}
	return count <= int64(r.limit), nil
}

func (r *redisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, rateLimitPrefix+key).Err()
}
