package ratelimit

import (
	"context"
	"testing"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// The limiter guards vendor quotas, not data; an unreachable Redis must let
// requests through instead of taking the API down.
func TestAllowFailsOpenWhenRedisUnreachable(t *testing.T) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisLimiter(client, "test_rate_limit", 1)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(context.Background(), 42))
	}
}

func TestNewRedisLimiterDefaults(t *testing.T) {
	limiter := NewRedisLimiter(nil, "", 0)
	assert.Equal(t, "rate_limit", limiter.prefix)
	assert.Equal(t, 60, limiter.perMinute)
}
