package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed window counter shared by every server process.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

func (l *RedisLimiter) key(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

// Allow counts the attempt. When Redis is unreachable the attempt is let
// through and the error is returned alongside an allowing decision.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.key(key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter unavailable, allowing request", "key", k, "error", err)
		return Decision{Allowed: true, Remaining: l.limit}, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// First hit in the window, or a key left without expiry.
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			l.logger.WarnContext(ctx, "rate limiter expire failed", "key", k, "error", err)
		}
		remaining = l.window
	}

	count := int(incr.Val())
	if count > l.limit {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: remaining}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}
