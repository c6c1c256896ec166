package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// LoginLimiter throttles repeated failed logins for one identifier from one address.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// LoginLimiterKey builds the limiter key for a login attempt.
func LoginLimiterKey(tenantID int64, identifier, ip string) string {
	return strconv.FormatInt(tenantID, 10) + ":" + strings.ToLower(strings.TrimSpace(identifier)) + ":" + ip
}

// NopLoginLimiter never blocks.
type NopLoginLimiter struct{}

func (NopLoginLimiter) Blocked(context.Context, string) (bool, error) { return false, nil }

func (NopLoginLimiter) Fail(context.Context, string) error { return nil }

func (NopLoginLimiter) Reset(context.Context, string) error { return nil }

// RedisLoginLimiter counts failed attempts in Redis so the limit is shared
// across instances. Callers fail open on errors.
type RedisLoginLimiter struct {
	redis       *redis.Client
	maxAttempts int
	window      time.Duration
	prefix      string
}

// NewRedisLoginLimiter creates a Redis-backed login limiter.
func NewRedisLoginLimiter(client *redis.Client, maxAttempts int, window time.Duration) *RedisLoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLoginLimiter{
		redis:       client,
		maxAttempts: maxAttempts,
		window:      window,
		prefix:      "login",
	}
}

// Blocked reports whether the key has used up its failed attempts.
func (l *RedisLoginLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return count >= l.maxAttempts, nil
}

// Fail records a failed attempt. The window restarts with every failure.
func (l *RedisLoginLimiter) Fail(ctx context.Context, key string) error {
	redisKey := l.key(key)

	pipe := l.redis.Pipeline()
	pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Reset clears the failure count after a successful login.
func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.key(key)).Err()
}

func (l *RedisLoginLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}
