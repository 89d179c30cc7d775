package cache_test

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/myrjola/sleuth/internal/cache"
	"github.com/myrjola/sleuth/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewRedis(mr.Addr(), testhelpers.NewLogger(testhelpers.NewWriter(t)))
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "answer", `{"response":"I was in the library."}`, time.Minute))
	value, ok, err := c.Get(ctx, "answer")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"response":"I was in the library."}`, value)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "answer")
	require.NoError(t, err)
	require.False(t, ok, "value should expire")
}

func TestRedis_unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.NewRedis(mr.Addr(), testhelpers.NewLogger(testhelpers.NewWriter(t)))
	t.Cleanup(func() { _ = c.Close() })
	mr.Close()

	_, _, err := c.Get(context.Background(), "key")
	require.Error(t, err)
}
