package tokencache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lavkamarket/delivery/internal/tokencache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_ValidFor(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	token := tokencache.Token{
		AccessToken: "abc",
		ExpiresAt:   now.Add(time.Hour),
	}

	assert.True(t, token.ValidFor(now, time.Minute))
	assert.False(t, token.ValidFor(now, 2*time.Hour), "token inside the margin counts as expired")
	assert.False(t, token.ValidFor(now.Add(time.Hour), time.Minute))
	assert.False(t, tokencache.Token{ExpiresAt: now.Add(time.Hour)}.ValidFor(now, time.Minute),
		"empty token is never valid")
}

func TestMemory_GetSet(t *testing.T) {
	store := tokencache.NewMemory()
	ctx := context.Background()

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store is empty")

	token := tokencache.Token{AccessToken: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Set(ctx, token))

	got, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, token.AccessToken, got.AccessToken)
}

func TestMemory_LastWriteWins(t *testing.T) {
	store := tokencache.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, tokencache.Token{AccessToken: "first"}))
	require.NoError(t, store.Set(ctx, tokencache.Token{AccessToken: "second"}))

	got, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", got.AccessToken)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	store := tokencache.NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, tokencache.Token{AccessToken: "token"})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = store.Get(ctx)
		}()
	}
	wg.Wait()

	got, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token", got.AccessToken)
}
