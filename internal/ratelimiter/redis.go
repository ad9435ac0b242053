package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter keeps the fixed-window counters in Redis so every server
// instance shares the same budget per client.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	key := rl.prefix + clientID

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX leaves the deadline of an open window untouched.
	pipe.ExpireNX(ctx, key, rl.window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limiter: %w", err)
	}

	count := int(incr.Val())
	remainingTTL := ttl.Val()
	if remainingTTL <= 0 {
		remainingTTL = rl.window
	}
	resetAt := time.Now().Add(remainingTTL)

	if count > rl.limit {
		return Decision{
			Allowed:    false,
			Limit:      rl.limit,
			ResetAt:    resetAt,
			RetryAfter: remainingTTL,
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     rl.limit,
		Remaining: rl.limit - count,
		ResetAt:   resetAt,
	}, nil
}
