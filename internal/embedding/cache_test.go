package embedding_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/embedding/mock"
	"github.com/rcliao/tiered-memory/internal/store"
)

func TestCacheHitAvoidsProviderCall(t *testing.T) {
	ctx := context.Background()
	provider := mock.New(32)
	c := embedding.NewCache(provider, embedding.CacheOptions{Logger: zerolog.Nop()})

	v1, err := c.Embed(ctx, "user likes coffee")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "user likes coffee")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), provider.Calls())

	st := c.Stats()
	assert.Equal(t, 1, st.Size)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
}

func TestCacheDropsOldestHalfOnOverflow(t *testing.T) {
	ctx := context.Background()
	provider := mock.New(8)
	c := embedding.NewCache(provider, embedding.CacheOptions{MaxSize: 4, Logger: zerolog.Nop()})

	for i := 0; i < 4; i++ {
		_, err := c.Embed(ctx, fmt.Sprintf("text %d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 4, c.Len())

	// Fifth insert evicts "text 0" and "text 1" together.
	_, err := c.Embed(ctx, "text 4")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	calls := provider.Calls()
	_, _ = c.Embed(ctx, "text 3")
	assert.Equal(t, calls, provider.Calls(), "text 3 should still be cached")

	_, _ = c.Embed(ctx, "text 0")
	assert.Equal(t, calls+1, provider.Calls(), "text 0 should have been evicted")
}

func TestCacheProviderFailure(t *testing.T) {
	provider := mock.New(8)
	provider.Fail(errors.New("provider down"))
	c := embedding.NewCache(provider, embedding.CacheOptions{Logger: zerolog.Nop()})

	_, err := c.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCacheWithoutProvider(t *testing.T) {
	c := embedding.NewCache(nil, embedding.CacheOptions{Logger: zerolog.Nop()})
	assert.False(t, c.Enabled())

	_, err := c.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, embedding.ErrNoEmbedding)
}

func TestCachePersistentBacking(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	provider := mock.New(16)
	first := embedding.NewCache(provider, embedding.CacheOptions{Backing: s, Logger: zerolog.Nop()})
	want, err := first.Embed(ctx, "persist me")
	require.NoError(t, err)

	// A fresh in-memory cache finds the vector in the table.
	second := embedding.NewCache(provider, embedding.CacheOptions{Backing: s, Logger: zerolog.Nop()})
	got, err := second.Embed(ctx, "persist me")
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, int64(1), provider.Calls())
}
