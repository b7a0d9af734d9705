package permission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	granted, err := c.Granted(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, granted)

	require.NoError(t, c.Grant(ctx, "u1"))
	granted, _ = c.Granted(ctx, "u1")
	assert.True(t, granted)

	now = now.Add(2 * time.Minute)
	granted, _ = c.Granted(ctx, "u1")
	assert.False(t, granted)
	assert.Empty(t, c.items)
}

func setupRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+mr.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_GrantAndExpire(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, time.Minute)

	granted, err := c.Granted(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, granted)

	require.NoError(t, c.Grant(ctx, "u1"))
	granted, err = c.Granted(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, granted)

	assert.True(t, mr.Exists("discussion:search-permission:u1"))
	assert.Equal(t, time.Minute, mr.TTL("discussion:search-permission:u1"))

	mr.FastForward(2 * time.Minute)
	granted, err = c.Granted(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestRedisCache_ErrorsWhenDown(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, 0)
	require.NoError(t, c.Ping(ctx))

	mr.Close()
	_, err := c.Granted(ctx, "u1")
	assert.Error(t, err)
	assert.Error(t, c.Grant(ctx, "u1"))
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url://", time.Minute)
	assert.Error(t, err)
}
