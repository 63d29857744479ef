package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisLimiter enforces a per-user sliding-window limit backed by a Redis
// sorted set. It fails open: if Redis is unreachable the request is allowed,
// since the limiter protects upstream vendor quotas, not data integrity.
type RedisLimiter struct {
	client    *redisv9.Client
	prefix    string
	perMinute int
	window    time.Duration
}

func NewRedisLimiter(client *redisv9.Client, prefix string, perMinute int) *RedisLimiter {
	if prefix == "" {
		prefix = "rate_limit"
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RedisLimiter{
		client:    client,
		prefix:    prefix,
		perMinute: perMinute,
		window:    time.Minute,
	}
}

// Allow records the request and reports whether the user is within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, userID uint) bool {
	key := fmt.Sprintf("%s:%d", l.prefix, userID)
	now := time.Now()
	windowStart := now.Add(-l.window)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMicro(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redisv9.Z{
		Score:  float64(now.UnixMicro()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("rate limiter redis error, allowing request: %v", err)
		return true
	}

	return countCmd.Val() < int64(l.perMinute)
}

// Reset clears the window for a user.
func (l *RedisLimiter) Reset(ctx context.Context, userID uint) error {
	key := fmt.Sprintf("%s:%d", l.prefix, userID)
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset rate limit failed: %w", err)
	}
	return nil
}
