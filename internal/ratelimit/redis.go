package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter keeps window counters in redis so limits hold across instances.
// INCR is atomic at the server, so concurrent callers on the same key cannot
// lose updates.
type RedisLimiter struct {
	c *redis.Client
}

func NewRedisLimiter(c *redis.Client) *RedisLimiter {
	return &RedisLimiter{c: c}
}

var _ Limiter = (*RedisLimiter)(nil)

func (l *RedisLimiter) CheckAndConsume(ctx context.Context, action, identity string, max int, window time.Duration) (Decision, error) {
	k := key(action, identity)
	now := time.Now()

	n, err := l.c.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	var resetAt time.Time
	if n == 1 {
		// First hit in a fresh window: the key's TTL defines the window end.
		if err := l.c.PExpire(ctx, k, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set rate window: %w", err)
		}
		resetAt = now.Add(window)
	} else {
		ttl, err := l.c.PTTL(ctx, k).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read rate window: %w", err)
		}
		if ttl <= 0 {
			// Counter survived without a TTL (expiry write lost); re-arm it so
			// the key cannot rate-limit forever.
			if err := l.c.PExpire(ctx, k, window).Err(); err != nil {
				return Decision{}, fmt.Errorf("failed to re-arm rate window: %w", err)
			}
			ttl = window
		}
		resetAt = now.Add(ttl)
	}

	remaining := max - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(n) <= max,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
