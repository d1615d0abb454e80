package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(2, time.Minute)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))
	assert.Equal(t, 2, c.Len())

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss, "oldest entry is evicted")

	v, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)

	require.NoError(t, c.Delete(ctx, "c"))
	_, err = c.Get(ctx, "c")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Close())
	assert.Zero(t, c.Len())
}

func TestMemoryClient_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10, 20*time.Millisecond)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	time.Sleep(60 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisClient(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	c, err := NewRedisClient(ctx, RedisConfig{Addr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "upload", []byte(`{"id":"x"}`), time.Hour))
	assert.True(t, mr.Exists("test:upload"))

	v, err := c.Get(ctx, "upload")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x"}`, string(v))

	mr.FastForward(2 * time.Hour)
	_, err = c.Get(ctx, "upload")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "gone", []byte("1"), 0))
	require.NoError(t, c.Delete(ctx, "gone"))
	assert.False(t, mr.Exists("test:gone"))
}

func TestRedisClient_URL(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisClient(context.Background(), RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.True(t, mr.Exists("recruit:upload:k"))
}

func TestRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)

	_, err = NewRedisClient(context.Background(), RedisConfig{URL: "not-a-url://"})
	assert.Error(t, err)
}
