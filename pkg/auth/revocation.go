package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revoker records token ids (jti) that must no longer be accepted.
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NopRevoker is used when revocation is disabled. Logout is then a
// client-side discard only.
type NopRevoker struct{}

func (NopRevoker) Revoke(context.Context, string, time.Time) error { return nil }

func (NopRevoker) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisRevoker keeps a denylist of token ids in Redis. Entries expire with the
// token they revoke, so the set never grows past the live token population.
type RedisRevoker struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRevoker creates a Redis-backed denylist.
func NewRedisRevoker(client *redis.Client, prefix string) *RedisRevoker {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisRevoker{redis: client, prefix: prefix, now: time.Now}
}

// Revoke denylists jti until the given instant. Already expired tokens are ignored.
func (r *RedisRevoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.redis.Set(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked.
func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevoker) key(jti string) string {
	return fmt.Sprintf("%s:%s", r.prefix, jti)
}
