package ratelimiter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiter(t *testing.T) {
	client := newTestRedis(t)
	rl := NewRedisLimiter(client, 3, time.Minute)
	ctx := context.Background()
	id := uuid.NewString()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, id)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := rl.Allow(ctx, id)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Positive(t, d.RetryAfterSeconds())
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}
