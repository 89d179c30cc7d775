package ai_test

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/cache"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestCached(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	redis := cache.NewRedis(mr.Addr(), logger)
	t.Cleanup(func() { _ = redis.Close() })

	gen := &scriptedGenerator{failures: 0, err: nil, calls: 0}
	cached := ai.NewCached(gen, redis, time.Hour, logger)
	ctx := context.Background()
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "You are the butler."},
		{Role: ai.RoleUser, Content: "Where were you at midnight?"},
	}

	first, err := cached.Generate(ctx, messages)
	require.NoError(t, err)
	second, err := cached.Generate(ctx, messages)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, gen.calls, "second call should be served from cache")

	key, err := ai.CacheKey(messages)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	_, err = cached.Generate(ctx, append(messages, ai.Message{Role: ai.RoleUser, Content: "Answer me."}))
	require.NoError(t, err)
	require.Equal(t, 2, gen.calls, "different conversation should miss the cache")
}

func TestCached_redisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	redis := cache.NewRedis(mr.Addr(), logger)
	t.Cleanup(func() { _ = redis.Close() })
	mr.Close()

	gen := &scriptedGenerator{failures: 0, err: nil, calls: 0}
	cached := ai.NewCached(gen, redis, time.Hour, logger)
	out, err := cached.Generate(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "Hello"}})
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestCacheKey(t *testing.T) {
	a, err := ai.CacheKey([]ai.Message{{Role: ai.RoleUser, Content: "a"}})
	require.NoError(t, err)
	b, err := ai.CacheKey([]ai.Message{{Role: ai.RoleUser, Content: "b"}})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, len("sleuth:completion:")+64)
}
