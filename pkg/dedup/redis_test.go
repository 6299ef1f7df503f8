package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisGuard(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisGuard(client), mr
}

func TestRedisGuardTryAcquire(t *testing.T) {
	g, _ := newTestRedisGuard(t)
	ctx := context.Background()
	key := Key{Subject: "evil.tk", ActionType: "block_domain"}

	acquired, err := g.TryAcquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = g.TryAcquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, acquired)

	acquired, err = g.TryAcquire(ctx, Key{Subject: "evil.tk", ActionType: "notify"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRedisGuardCooldownExpiry(t *testing.T) {
	g, mr := newTestRedisGuard(t)
	ctx := context.Background()
	key := Key{Subject: "evil.tk", ActionType: "block_domain"}

	acquired, err := g.TryAcquire(ctx, key, time.Hour)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(61 * time.Minute)

	acquired, err = g.TryAcquire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, acquired, "expired key must be acquirable again")
}

func TestRedisGuardUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	g := NewRedisGuard(client)

	mr.Close()

	_, err := g.TryAcquire(context.Background(), Key{Subject: "s", ActionType: "a"}, time.Hour)
	assert.Error(t, err)
}
