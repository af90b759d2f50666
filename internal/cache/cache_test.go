package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestCache_SetGet(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "k", "v", time.Minute))
	val, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", val)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestCache_MissAndExpiry(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "absent")
	assert.False(t, ok)

	c.Set(ctx, "k", "v", 30*time.Second)
	mr.FastForward(31 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	assert.Equal(t, int64(2), c.Stats().Misses)
}

func TestCache_Delete(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", "v", time.Minute)
	assert.True(t, c.Delete(ctx, "k"))
	assert.False(t, c.Delete(ctx, "k"))
	assert.False(t, c.Exists(ctx, "k"))
}

func TestCache_Increment(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	n, ok := c.Increment(ctx, "counter", time.Minute)
	require.True(t, ok)
	assert.Equal(t, int64(1), n)

	n, _ = c.Increment(ctx, "counter", time.Minute)
	assert.Equal(t, int64(2), n)
}

func TestCache_RedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(client)
	mr.Close()
	ctx := context.Background()

	assert.False(t, c.Set(ctx, "k", "v", time.Minute))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, c.Healthy(ctx))
	assert.Positive(t, c.Stats().Errors)
	client.Close()
}
