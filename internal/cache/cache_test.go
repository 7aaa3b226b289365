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

func exerciseClient(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "quiz:a", "payload", 0))
	v, err := c.Get(ctx, "quiz:a")
	require.NoError(t, err)
	assert.Equal(t, "payload", v)

	ok, err := c.Exists(ctx, "quiz:a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "quiz:a"))
	ok, err = c.Exists(ctx, "quiz:a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Ping(ctx))
}

func TestMemoryClient(t *testing.T) {
	c := NewMemory("quizzy")
	exerciseClient(t, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", "x", 10*time.Millisecond))
	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return IsNotFound(err)
	}, time.Second, 5*time.Millisecond)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Driver)
	assert.Positive(t, st.Hits)
	assert.Positive(t, st.Misses)
}

func TestRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), Config{Addr: mr.Addr(), Prefix: "quizzy"})
	require.NoError(t, err)
	defer c.Close()
	exerciseClient(t, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "ttl", "x", time.Minute))
	assert.True(t, mr.Exists("quizzy:ttl"))
	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "ttl")
	assert.True(t, IsNotFound(err))

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", st.Driver)
}

func TestRedisFromClient_SharesConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisFromClient(rdb, "")
	require.NoError(t, c.Set(context.Background(), "k", "v", 0))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), Config{})
	require.NoError(t, err)
	_, isMem := c.(*memoryClient)
	assert.True(t, isMem)

	_, err = New(context.Background(), Config{Driver: "memcached"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Driver: "redis", Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
