package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_WindowExhaustion(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 3, d.Limit)
}

func TestMemoryLimiter_WindowReset(t *testing.T) {
	l := NewMemoryLimiter()
	current := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.CheckAndConsume(ctx, "a", "ip", 3, time.Minute)
	}
	d, _ := l.CheckAndConsume(ctx, "a", "ip", 3, time.Minute)
	require.False(t, d.Allowed)

	current = current.Add(time.Minute + time.Second)
	d, err := l.CheckAndConsume(ctx, "a", "ip", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, current.Add(time.Minute), d.ResetAt)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.1", 3, time.Minute)
	}
	d, _ := l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.1", 3, time.Minute)
	require.False(t, d.Allowed)

	// Different identity, same action.
	d, _ = l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.2", 3, time.Minute)
	assert.True(t, d.Allowed)

	// Same identity, different action.
	d, _ = l.CheckAndConsume(ctx, "invite_code.issue", "10.0.0.1", 3, time.Minute)
	assert.True(t, d.Allowed)
}

func TestMemoryLimiter_ConcurrentNoLostUpdates(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	const callers = 50
	allowed := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.CheckAndConsume(ctx, "a", "ip", 10, time.Minute)
			assert.NoError(t, err)
			allowed <- d.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 10, count)
}

func setupRedisLimiter(t *testing.T) (*miniredis.Miniredis, *RedisLimiter) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLimiter(client)
}

func TestRedisLimiter_WindowExhaustion(t *testing.T) {
	_, l := setupRedisLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
	}

	d, err := l.CheckAndConsume(ctx, "invite_code.validate", "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRedisLimiter_WindowExpiry(t *testing.T) {
	mr, l := setupRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.CheckAndConsume(ctx, "a", "ip", 3, time.Minute)
	}
	d, _ := l.CheckAndConsume(ctx, "a", "ip", 3, time.Minute)
	require.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	d, err := l.CheckAndConsume(ctx, "a", "ip", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestRedisLimiter_ReArmsMissingTTL(t *testing.T) {
	mr, l := setupRedisLimiter(t)
	ctx := context.Background()

	// Counter exists but carries no TTL: the expiry write was lost.
	mr.Set("ratelimit:a:ip", "2")

	d, err := l.CheckAndConsume(ctx, "a", "ip", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Greater(t, mr.TTL("ratelimit:a:ip"), time.Duration(0))
	assert.Equal(t, 2, d.Remaining)
}
