package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestUnreadCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewUnreadCache(client, "lumen", time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, ok := cache.Get(ctx, "alice", "bob")
	require.False(t, ok)

	cache.Set(ctx, "alice", "bob", 4)

	count, ok := cache.Get(ctx, "alice", "bob")
	require.True(t, ok)
	require.Equal(t, int64(4), count)

	// Directions are independent keys.
	_, ok = cache.Get(ctx, "bob", "alice")
	require.False(t, ok)

	cache.Invalidate(ctx, "alice", "bob")
	_, ok = cache.Get(ctx, "alice", "bob")
	require.False(t, ok)
}

func TestUnreadCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewUnreadCache(client, "lumen", time.Second, zerolog.Nop())
	ctx := context.Background()

	cache.Set(ctx, "alice", "bob", 2)
	mr.FastForward(2 * time.Second)

	_, ok := cache.Get(ctx, "alice", "bob")
	require.False(t, ok)
}

func TestUnreadCacheDisabledWithoutRedis(t *testing.T) {
	cache := NewUnreadCache(nil, "lumen", time.Minute, zerolog.Nop())
	ctx := context.Background()

	cache.Set(ctx, "alice", "bob", 9)
	_, ok := cache.Get(ctx, "alice", "bob")
	require.False(t, ok)
}
