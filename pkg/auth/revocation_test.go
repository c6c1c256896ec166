package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRevoker(t *testing.T) {
	client, mr := newTestRedis(t)
	r := NewRedisRevoker(client, "")
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("revoked:jti-1"))

	// The entry lives only as long as the token would have.
	mr.FastForward(time.Hour + time.Second)
	revoked, _ = r.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)
}

func TestRedisRevoker_ExpiredTokenIsIgnored(t *testing.T) {
	client, mr := newTestRedis(t)
	r := NewRedisRevoker(client, "denylist")

	require.NoError(t, r.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("denylist:old"))
}

func TestRedisRevoker_Unavailable(t *testing.T) {
	client, mr := newTestRedis(t)
	r := NewRedisRevoker(client, "")
	mr.Close()

	_, err := r.IsRevoked(context.Background(), "jti")
	assert.Error(t, err)
	assert.Error(t, r.Revoke(context.Background(), "jti", time.Now().Add(time.Hour)))
}
