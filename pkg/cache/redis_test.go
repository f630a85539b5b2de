package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache(t *testing.T) {
	c, _ := newTestRedis(t)
	exercise(t, c)
}

func TestRedisCachePrefixAndTTL(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "doc:1", []byte("xml"), time.Minute))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"doc:1"))
	assert.Equal(t, time.Minute, mr.TTL(DefaultRedisPrefix+"doc:1"))

	mr.FastForward(2 * time.Minute)
	_, hit, err := c.Get(ctx, "doc:1")
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheURL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisOptions{URL: "redis://" + mr.Addr() + "/0", Prefix: "x:"})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.True(t, mr.Exists("x:k"))
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisOptions{
		Addr:    addr,
		Backoff: Backoff{Attempts: 2, Delay: time.Millisecond},
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}
