package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/embedding"
)

func TestDeterministicAndNormalized(t *testing.T) {
	m := New(64)
	ctx := context.Background()

	a, err := m.Embed(ctx, "user likes coffee")
	require.NoError(t, err)
	b, err := m.Embed(ctx, "user likes coffee")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, embedding.CosineSimilarity(a, a), 1e-5)
}

func TestSharedTokensScoreHigher(t *testing.T) {
	m := New(256)
	ctx := context.Background()

	base, _ := m.Embed(ctx, "user likes coffee")
	near, _ := m.Embed(ctx, "user likes coffee a lot")
	far, _ := m.Embed(ctx, "quarterly budget review friday")

	assert.Greater(t, embedding.CosineSimilarity(base, near), embedding.CosineSimilarity(base, far))
}

func TestFailAndPinned(t *testing.T) {
	m := New(4)
	ctx := context.Background()

	m.Set("pinned", []float32{1, 0, 0, 0})
	v, err := m.Embed(ctx, "pinned")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, v)

	m.Fail(errors.New("down"))
	_, err = m.Embed(ctx, "pinned")
	assert.Error(t, err)
	assert.Equal(t, int64(2), m.Calls())
}
