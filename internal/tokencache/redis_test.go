package tokencache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lavkamarket/delivery/internal/tokencache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*tokencache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := tokencache.NewRedisWithClient(client, "delivery:test:token")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedis_GetSet(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store is empty")

	token := tokencache.Token{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(time.Hour).Truncate(time.Second),
	}
	require.NoError(t, store.Set(ctx, token))

	got, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, token.AccessToken, got.AccessToken)
	assert.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Second)
}

func TestRedis_TTLTracksExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, tokencache.Token{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	ttl := mr.TTL("delivery:test:token")
	assert.Greater(t, ttl, 55*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedis_ExpiredTokenGetsMinimalTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, tokencache.Token{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}))

	ttl := mr.TTL("delivery:test:token")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Second)
}

func TestRedis_EvictionLooksEmpty(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, tokencache.Token{
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(time.Minute),
	}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := tokencache.NewRedis("not-a-url", "key")
	assert.Error(t, err)
}
