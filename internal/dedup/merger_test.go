package dedup

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/embedding/mock"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/rank"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/summarize"
)

type fixture struct {
	store  *store.SQLiteStore
	emb    *mock.Embedder
	merger *Merger
}

func newFixture(t *testing.T, s summarize.Summarizer) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "dedup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := mock.New(4)
	m := NewMerger(Options{
		Store:      st,
		Neighbors:  rank.NewSearcher(st, emb, zerolog.Nop()),
		Embedder:   emb,
		Summarizer: s,
		Threshold:  0.8,
		Logger:     zerolog.Nop(),
	})
	return &fixture{store: st, emb: emb, merger: m}
}

func count(t *testing.T, s *store.SQLiteStore) int {
	t.Helper()
	recs, err := s.ListRecords(context.Background(), store.ListParams{})
	require.NoError(t, err)
	return len(recs)
}

func TestReconcileDistinctTexts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.emb.Set("user likes coffee", []float32{1, 0, 0, 0})
	f.emb.Set("user lives in Berlin", []float32{0, 1, 0, 0})

	a, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	require.NoError(t, err)
	b, err := f.merger.Reconcile(ctx, Candidate{Text: "user lives in Berlin"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Record.ID, b.Record.ID)
	assert.Equal(t, embedding.ContentHash("user likes coffee"), a.Record.ID)
	assert.Equal(t, 2, count(t, f.store))
}

func TestReconcileSkipsRedundantText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	long := "user drinks black coffee every morning"
	short := "coffee every morning"
	f.emb.Set(long, []float32{1, 0.1, 0, 0})
	f.emb.Set(short, []float32{1, 0, 0, 0})

	_, err := f.merger.Reconcile(ctx, Candidate{Text: long})
	require.NoError(t, err)

	out, err := f.merger.Reconcile(ctx, Candidate{Text: short})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	require.NotNil(t, out.Existing)
	assert.Equal(t, long, out.Existing.Content)
	assert.Equal(t, 1, count(t, f.store))
}

func TestReconcileReplacesSubsumedNeighbor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		t.Fatal("summarizer should not be called when the neighbor is subsumed")
		return "", nil
	}))
	f.emb.Set("user likes coffee", []float32{1, 0, 0, 0})
	f.emb.Set("user likes coffee a lot", []float32{1, 0.2, 0, 0})

	first, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	require.NoError(t, err)

	out, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee a lot"})
	require.NoError(t, err)
	assert.False(t, out.Merged)
	assert.Equal(t, []string{first.Record.ID}, out.Deleted)

	recs, _ := f.store.ListRecords(ctx, store.ListParams{})
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Content, "coffee")
}

func TestReconcileMergesThroughSummarizer(t *testing.T) {
	ctx := context.Background()
	var prompt string
	f := newFixture(t, summarize.Func(func(_ context.Context, _, p string) (string, error) {
		prompt = p
		return "- user likes coffee and tea", nil
	}))
	f.emb.Set("user likes coffee", []float32{1, 0, 0, 0})
	f.emb.Set("user enjoys tea", []float32{1, 0.1, 0, 0})
	f.emb.Set("user likes coffee and tea", []float32{1, 0.05, 0, 0})

	_, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	require.NoError(t, err)

	out, err := f.merger.Reconcile(ctx, Candidate{Text: "user enjoys tea"})
	require.NoError(t, err)
	assert.True(t, out.Merged)
	assert.Equal(t, "user likes coffee and tea", out.Record.Content)
	assert.Equal(t, embedding.ContentHash("user likes coffee and tea"), out.Record.ID)
	assert.Contains(t, prompt, "- user likes coffee")
	assert.Contains(t, prompt, "- user enjoys tea")

	recs, _ := f.store.ListRecords(ctx, store.ListParams{})
	require.Len(t, recs, 1)
	assert.Equal(t, out.Record.ID, recs[0].ID)
}

func TestReconcileSummarizerFailureKeepsLongest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		return "", errors.New("timeout")
	}))
	f.emb.Set("user enjoys green tea daily", []float32{1, 0, 0, 0})
	f.emb.Set("user likes coffee", []float32{1, 0.1, 0, 0})

	_, err := f.merger.Reconcile(ctx, Candidate{Text: "user enjoys green tea daily"})
	require.NoError(t, err)

	out, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	require.NoError(t, err)
	assert.Equal(t, "user enjoys green tea daily", out.Record.Content)
	assert.Equal(t, 1, count(t, f.store))
}

func TestReconcileInvalidMergeAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		return "None", nil
	}))
	f.emb.Set("user likes coffee", []float32{1, 0, 0, 0})
	f.emb.Set("user enjoys tea", []float32{1, 0.1, 0, 0})

	_, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	require.NoError(t, err)

	_, err = f.merger.Reconcile(ctx, Candidate{Text: "user enjoys tea"})
	assert.ErrorIs(t, err, ErrInvalidContent)
	// Nothing was deleted.
	assert.Equal(t, 1, count(t, f.store))
}

var errDiskFull = errors.New("disk full")

// failingStore rejects every write.
type failingStore struct {
	*store.SQLiteStore
}

func (failingStore) PutRecord(context.Context, model.Record) error { return errDiskFull }

func (failingStore) ReplaceRecords(context.Context, []string, model.Record) error {
	return errDiskFull
}

func TestReconcileFailedWriteKeepsNeighbors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.emb.Set("user likes coffee", []float32{1, 0, 0, 0})
	f.emb.Set("user likes coffee a lot", []float32{1, 0.1, 0, 0})

	_, err := f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	require.NoError(t, err)

	broken := NewMerger(Options{
		Store:     failingStore{f.store},
		Neighbors: rank.NewSearcher(f.store, f.emb, zerolog.Nop()),
		Embedder:  f.emb,
		Threshold: 0.8,
		Logger:    zerolog.Nop(),
	})
	_, err = broken.Reconcile(ctx, Candidate{Text: "user likes coffee a lot"})
	require.ErrorIs(t, err, errDiskFull)

	recs, err := f.store.ListRecords(ctx, store.ListParams{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "user likes coffee", recs[0].Content)
}

func TestReconcileRejectsInvalidAndEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.merger.Reconcile(ctx, Candidate{Text: "n/a"})
	assert.ErrorIs(t, err, ErrInvalidContent)

	f.emb.Fail(errors.New("provider down"))
	_, err = f.merger.Reconcile(ctx, Candidate{Text: "user likes coffee"})
	assert.Error(t, err)
	assert.Equal(t, 0, count(t, f.store))
}

func TestReconcileClassifiesAndKeepsImportance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.emb.Set("remember this is important: user hates mornings", []float32{0, 0, 1, 0})
	f.emb.Set("the user owns a cat named Miso", []float32{0, 0, 0, 1})

	out, err := f.merger.Reconcile(ctx, Candidate{Text: "remember this is important: user hates mornings"})
	require.NoError(t, err)
	assert.Equal(t, "important", out.Record.Category)
	assert.InDelta(t, 0.9, out.Record.Importance, 1e-9)

	pinned, err := f.merger.Reconcile(ctx, Candidate{Text: "the user owns a cat named Miso", Category: "identity", Importance: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "identity", pinned.Record.Category)
	assert.Equal(t, 0.7, pinned.Record.Importance)
}

func TestMergeTextsTruncates(t *testing.T) {
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		return strings.Repeat("word ", 100), nil
	}))
	out := f.merger.MergeTexts(context.Background(), []string{"a b c", "d e f"})
	assert.LessOrEqual(t, len([]rune(out)), MaxMergedRunes)
	assert.Equal(t, "only", f.merger.MergeTexts(context.Background(), []string{"only"}))
}
