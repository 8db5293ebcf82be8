package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/tiered-memory/internal/dedup"
	"github.com/rcliao/tiered-memory/internal/embedding/mock"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/rank"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/summarize"
)

type fixture struct {
	store   *store.SQLiteStore
	emb     *mock.Embedder
	log     *Log
	merger  *dedup.Merger
	sweeper *Sweeper
}

func newFixture(t *testing.T, s summarize.Summarizer) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	emb := mock.New(64)
	searcher := rank.NewSearcher(st, emb, zerolog.Nop())
	merger := dedup.NewMerger(dedup.Options{
		Store:     st,
		Neighbors: searcher,
		Embedder:  emb,
		Logger:    zerolog.Nop(),
	})
	sweeper := NewSweeper(SweepOptions{
		Turns:      st,
		Runs:       st,
		Summarizer: s,
		Reconciler: merger,
		Neighbors:  searcher,
		Embedder:   emb,
		Logger:     zerolog.Nop(),
	})
	return &fixture{
		store:   st,
		emb:     emb,
		log:     NewLog(st, emb, "", zerolog.Nop()),
		merger:  merger,
		sweeper: sweeper,
	}
}

func (f *fixture) appendTurns(t *testing.T, role string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.log.Append(context.Background(), role, fmt.Sprintf("message number %d from the user", i))
		require.NoError(t, err)
	}
}

func (f *fixture) unprocessed(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountTurns(context.Background(), store.TurnParams{Unprocessed: true})
	require.NoError(t, err)
	return n
}

func (f *fixture) records(t *testing.T) []model.Record {
	t.Helper()
	recs, err := f.store.ListRecords(context.Background(), store.ListParams{})
	require.NoError(t, err)
	return recs
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	turn, err := f.log.Append(ctx, model.RoleUser, "  I moved to Berlin  ")
	require.NoError(t, err)
	assert.NotZero(t, turn.ID)
	assert.Equal(t, "I moved to Berlin", turn.Content)
	assert.Equal(t, f.log.SessionID(), turn.SessionID)
	assert.Len(t, turn.Embedding, 64)

	_, err = f.log.Append(ctx, model.RoleUser, "   ")
	assert.ErrorIs(t, err, ErrEmptyTurn)

	_, err = f.log.Append(ctx, "system", "hello there")
	assert.Error(t, err)
}

func TestAppendSurvivesEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.emb.Fail(errors.New("provider down"))

	turn, err := f.log.Append(ctx, model.RoleNote, "user prefers window seats")
	require.NoError(t, err)
	assert.Nil(t, turn.Embedding)

	turns, err := f.store.ListTurns(ctx, store.TurnParams{})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Nil(t, turns[0].Embedding)
}

func TestRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	other := f.log.WithSession("other-session")

	_, err := f.log.Append(ctx, model.RoleUser, "first message")
	require.NoError(t, err)
	_, err = other.Append(ctx, model.RoleAssistant, "second message")
	require.NoError(t, err)

	turns, err := f.log.Recent(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "second message", turns[0].Content)
	assert.Equal(t, "other-session", turns[0].SessionID)

	turns, err = f.log.Recent(ctx, 7, 1)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestSweepWaitsForInterval(t *testing.T) {
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		t.Fatal("summarizer should not run below the interval")
		return "", nil
	}))
	f.appendTurns(t, model.RoleUser, 3)

	report, err := f.sweeper.Sweep(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.Ran)
	assert.Equal(t, 3, report.Pending)
	assert.Equal(t, 3, f.unprocessed(t))
}

func TestSweepExtractsFacts(t *testing.T) {
	ctx := context.Background()
	var prompts []string
	f := newFixture(t, summarize.Func(func(_ context.Context, _, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "- user is a software engineer\n- ok\n• user is a software engineer\n- user lives in Berlin", nil
	}))
	f.appendTurns(t, model.RoleUser, 4)

	report, err := f.sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.Ran)
	assert.Equal(t, 4, report.Turns)
	assert.Equal(t, 2, report.Extracted)
	assert.Equal(t, 2, report.Saved)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "user: message number 0 from the user")
	assert.Len(t, f.records(t), 2)
	assert.Equal(t, 0, f.unprocessed(t))

	runs, err := f.store.LastRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ProcessType, runs[0].Type)
	assert.Equal(t, 4, runs[0].Count)
}

func TestSweepRunsAtInterval(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return "", summarize.ErrEmptyResponse
	}))
	f.appendTurns(t, model.RoleUser, DefaultInterval)

	report, err := f.sweeper.Sweep(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, report.Ran)
	assert.Equal(t, DefaultTurnLimit, report.Turns)
	assert.Equal(t, int32(DefaultInterval/10), calls.Load())
	assert.Empty(t, report.Error)
	assert.Equal(t, 0, f.unprocessed(t))
}

func TestSweepFailureMidwayMarksProcessed(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		if calls.Add(1) == 3 {
			return "", errors.New("upstream timeout")
		}
		return "- user is a software engineer", nil
	}))
	f.appendTurns(t, model.RoleUser, 100)

	report, err := f.sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 100, report.Turns)
	assert.Equal(t, 0, report.Extracted)
	assert.Equal(t, 0, report.Saved)
	assert.Contains(t, report.Error, "upstream timeout")
	assert.Equal(t, int32(3), calls.Load())

	assert.Empty(t, f.records(t))
	assert.Equal(t, 0, f.unprocessed(t))

	runs, err := f.store.LastRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "upstream timeout")

	// Nothing is left to reprocess.
	again, err := f.sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Turns)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSweepSkipsNearDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		return "user is a software engineer", nil
	}))
	_, err := f.merger.Reconcile(ctx, dedup.Candidate{Text: "user is a software engineer"})
	require.NoError(t, err)
	f.appendTurns(t, model.RoleNote, 2)

	report, err := f.sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Extracted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Saved)
	assert.Len(t, f.records(t), 1)
}

func TestSweepConsumesAssistantTurnsWithoutMiningThem(t *testing.T) {
	ctx := context.Background()
	var prompts []string
	f := newFixture(t, summarize.Func(func(_ context.Context, _, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "", summarize.ErrEmptyResponse
	}))
	f.appendTurns(t, model.RoleUser, 3)
	f.appendTurns(t, model.RoleAssistant, 3)

	report, err := f.sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Turns)
	assert.Equal(t, 0, f.unprocessed(t))

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "user: message number 0")
	assert.NotContains(t, prompts[0], "assistant:")

	pruned, err := f.store.PruneTurns(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 6, pruned)
}

func TestSweepAssistantOnlyBatch(t *testing.T) {
	f := newFixture(t, summarize.Func(func(context.Context, string, string) (string, error) {
		t.Fatal("assistant turns are not mined")
		return "", nil
	}))
	f.appendTurns(t, model.RoleAssistant, 4)

	report, err := f.sweeper.Sweep(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Turns)
	assert.Empty(t, report.Error)
	assert.Equal(t, 0, f.unprocessed(t))
}

func TestSweepWithoutSummarizer(t *testing.T) {
	f := newFixture(t, nil)
	f.appendTurns(t, model.RoleUser, 2)

	report, err := f.sweeper.Sweep(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, ErrNoSummarizer.Error(), report.Error)
	assert.Equal(t, 0, f.unprocessed(t))
}

func TestParseFacts(t *testing.T) {
	out := strings.Join([]string{
		"- **user is a software engineer**",
		"",
		"• short",
		"1234567",
		"用户喜欢吃辣的食物",
		"- user is a software engineer",
	}, "\n")
	assert.Equal(t, []string{"user is a software engineer", "1234567", "用户喜欢吃辣的食物"}, ParseFacts(out))
}
