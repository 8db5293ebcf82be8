// Package engine composes the memory tiers into the API used by callers:
// saving, searching, sweeping, merging, forgetting and inspecting memory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/tiered-memory/internal/chunker"
	"github.com/rcliao/tiered-memory/internal/classify"
	"github.com/rcliao/tiered-memory/internal/dedup"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/extract"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/rank"
	"github.com/rcliao/tiered-memory/internal/session"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/summarize"
	"github.com/rcliao/tiered-memory/internal/working"
)

// Defaults applied by New to zero-valued Options fields.
const (
	DefaultMergeThreshold = 0.85
	DefaultMaxResults     = 5
	DefaultMinScore       = 0.3
	DefaultForgetDays     = 90
	DefaultMaxLongTerm    = 1000
	DefaultMergeNeighbors = 10
	ForgetImportanceBelow = 0.3
	DefaultWorkingDecay   = time.Hour
)

// Options configures an Engine. Only Store is required.
type Options struct {
	Store  *store.SQLiteStore
	DBPath string

	// Embedder is the raw provider; the engine puts a cache in front of it.
	// Nil disables vector search and long-term saves.
	Embedder     embedding.Embedder
	EmbedTimeout time.Duration
	CacheSize    int

	Summarizer summarize.Summarizer
	Classifier classify.Classifier
	// Extractor feeds working memory from user turns. Defaults to
	// extract.NewRules().
	Extractor extract.Extractor

	SessionID string

	SimilarityThreshold float64
	MergeThreshold      float64
	DuplicateThreshold  float64
	MaxResults          int
	MinScore            float64
	HalfLifeDays        float64
	WorkingCapacity     int
	WorkingDecay        time.Duration
	ProcessInterval     int
	ForgetDays          int
	MaxLongTerm         int
	SweepTurnLimit      int
	SweepBatch          chunker.Options

	Logger zerolog.Logger
}

// Engine is a memory system instance. It holds no global state; callers may
// build as many as they like.
type Engine struct {
	opts     Options
	store    *store.SQLiteStore
	cache    *embedding.Cache
	embedder embedding.Embedder
	searcher *rank.Searcher
	merger   *dedup.Merger
	working  *working.Memory
	log      *session.Log
	sweeper  *session.Sweeper
	logger   zerolog.Logger
}

// New builds an Engine over opts.Store.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.MergeThreshold <= 0 {
		opts.MergeThreshold = DefaultMergeThreshold
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.HalfLifeDays <= 0 {
		opts.HalfLifeDays = rank.DefaultHalfLifeDays
	}
	if opts.ForgetDays <= 0 {
		opts.ForgetDays = DefaultForgetDays
	}
	if opts.MaxLongTerm <= 0 {
		opts.MaxLongTerm = DefaultMaxLongTerm
	}
	if opts.WorkingDecay <= 0 {
		opts.WorkingDecay = DefaultWorkingDecay
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.NewRules()
	}

	e := &Engine{
		opts:    opts,
		store:   opts.Store,
		working: working.New(opts.WorkingCapacity),
		logger:  opts.Logger.With().Str("component", "engine").Logger(),
	}

	if opts.Embedder != nil {
		e.cache = embedding.NewCache(opts.Embedder, embedding.CacheOptions{
			MaxSize: opts.CacheSize,
			Timeout: opts.EmbedTimeout,
			Backing: opts.Store,
			Logger:  opts.Logger,
		})
		e.embedder = e.cache
	}

	e.searcher = rank.NewSearcher(opts.Store, e.embedder, opts.Logger)
	e.merger = dedup.NewMerger(dedup.Options{
		Store:      opts.Store,
		Neighbors:  e.searcher,
		Embedder:   e.embedder,
		Summarizer: opts.Summarizer,
		Classifier: opts.Classifier,
		Threshold:  opts.SimilarityThreshold,
		Logger:     opts.Logger,
	})
	e.log = session.NewLog(opts.Store, e.embedder, opts.SessionID, opts.Logger)
	e.sweeper = session.NewSweeper(session.SweepOptions{
		Turns:              opts.Store,
		Runs:               opts.Store,
		Summarizer:         opts.Summarizer,
		Reconciler:         e.merger,
		Neighbors:          e.searcher,
		Embedder:           e.embedder,
		Interval:           opts.ProcessInterval,
		TurnLimit:          opts.SweepTurnLimit,
		Batch:              opts.SweepBatch,
		DuplicateThreshold: opts.DuplicateThreshold,
		Logger:             opts.Logger,
	})
	return e, nil
}

// Working returns the working memory tier.
func (e *Engine) Working() *working.Memory { return e.working }

// Session returns the transcript log for the engine's session.
func (e *Engine) Session() *session.Log { return e.log }

// TurnResult reports a logged turn and the working memory facts drawn from it.
type TurnResult struct {
	Turn    *model.Turn    `json:"turn"`
	Working []extract.Fact `json:"working,omitempty"`
}

// LogTurn appends a turn to the session transcript. User turns also feed
// working memory through the extractor.
func (e *Engine) LogTurn(ctx context.Context, role, content string) (*TurnResult, error) {
	turn, err := e.log.Append(ctx, role, content)
	if err != nil {
		return nil, err
	}
	res := &TurnResult{Turn: turn}
	if role != model.RoleUser {
		return res, nil
	}

	res.Working = e.opts.Extractor.Extract(turn.Content)
	for _, f := range res.Working {
		e.working.Add(f.Key, f.Value, f.Priority, f.Source)
	}
	if len(res.Working) > 0 {
		e.logger.Debug().Int("facts", len(res.Working)).Int("working", e.working.Len()).Msg("Working memory updated")
	}
	return res, nil
}

// AddWorking puts a caller-supplied item into working memory.
func (e *Engine) AddWorking(key, value string, priority int) {
	e.working.Add(key, value, priority, model.SourceUserInput)
}

// RemoveWorking drops a working memory item and reports whether it existed.
func (e *Engine) RemoveWorking(key string) bool { return e.working.Remove(key) }

// DecayWorking lowers the priority of working items idle for longer than the
// configured decay window and returns how many changed.
func (e *Engine) DecayWorking() int {
	n := e.working.Decay(e.opts.WorkingDecay)
	if n > 0 {
		e.logger.Debug().Int("decayed", n).Msg("Working memory decayed")
	}
	return n
}

// SaveResult reports the outcome of Save. Saved is false when the text was
// rejected or could not be stored; Reason says why.
type SaveResult struct {
	Saved   bool       `json:"saved"`
	Tier    model.Tier `json:"tier"`
	ID      string     `json:"id,omitempty"`
	TurnID  int64      `json:"turn_id,omitempty"`
	Content string     `json:"content,omitempty"`
	Merged  bool       `json:"merged,omitempty"`
	Skipped bool       `json:"skipped,omitempty"`
	Deleted []string   `json:"deleted,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

// Save stores text in the given tier. Long-term saves are deduplicated and
// merged against their neighbors and need a working embedder. Short-term
// saves append a note to the session transcript and succeed without one.
// The only error returned is an unknown tier.
func (e *Engine) Save(ctx context.Context, text string, tier model.Tier) (*SaveResult, error) {
	text = strings.TrimSpace(text)
	res := &SaveResult{Tier: tier}

	switch tier {
	case model.TierLong, model.TierShort:
	default:
		return nil, fmt.Errorf("invalid tier %q (valid: long, short)", tier)
	}

	if err := dedup.Validate(text); err != nil {
		res.Reason = err.Error()
		return res, nil
	}

	if tier == model.TierShort {
		turn, err := e.log.Append(ctx, model.RoleNote, text)
		if err != nil {
			e.logger.Error().Err(err).Msg("Short-term save failed")
			res.Reason = err.Error()
			return res, nil
		}
		res.Saved = true
		res.TurnID = turn.ID
		res.Content = turn.Content
		return res, nil
	}

	out, err := e.merger.Reconcile(ctx, dedup.Candidate{Text: text})
	switch {
	case errors.Is(err, dedup.ErrInvalidContent), errors.Is(err, embedding.ErrNoEmbedding):
		res.Reason = err.Error()
		return res, nil
	case err != nil:
		e.logger.Warn().Err(err).Msg("Long-term save failed")
		res.Reason = err.Error()
		return res, nil
	}

	res.Saved = true
	if out.Skipped {
		res.Skipped = true
		res.ID = out.Existing.ID
		res.Content = out.Existing.Content
		return res, nil
	}
	res.ID = out.Record.ID
	res.Content = out.Record.Content
	res.Merged = out.Merged
	res.Deleted = out.Deleted
	return res, nil
}

// Result is one search hit.
type Result struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Score       float64   `json:"score"`
	Similarity  float64   `json:"similarity"`
	Importance  float64   `json:"importance"`
	AccessCount int       `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Search ranks long-term memory against query with lexical fusion and time
// decay, and records an access on every returned record. Zero topK or
// minScore use the configured defaults. Failures return an empty list.
func (e *Engine) Search(ctx context.Context, query string, topK int, minScore float64) []Result {
	if topK <= 0 {
		topK = e.opts.MaxResults
	}
	if minScore <= 0 {
		minScore = e.opts.MinScore
	}
	scored := e.search(ctx, query, topK, minScore)

	results := make([]Result, len(scored))
	for i, s := range scored {
		results[i] = Result{
			ID:          s.Record.ID,
			Content:     s.Record.Content,
			Category:    s.Record.Category,
			Score:       s.Score,
			Similarity:  s.Similarity,
			Importance:  s.Record.Importance,
			AccessCount: s.Record.AccessCount,
			CreatedAt:   s.Record.CreatedAt,
		}
	}
	return results
}

func (e *Engine) search(ctx context.Context, query string, topK int, minScore float64) []rank.Scored {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	scored, err := e.searcher.Search(ctx, query, rank.Options{
		TopK:         topK,
		MinScore:     minScore,
		Lexical:      true,
		Decay:        true,
		HalfLifeDays: e.opts.HalfLifeDays,
		Touch:        true,
	})
	if err != nil {
		e.logger.Error().Err(err).Msg("Search failed")
		return nil
	}
	return scored
}

// WorkingContext returns up to maxItems working memory items, highest
// priority first.
func (e *Engine) WorkingContext(maxItems int) []model.WorkingItem {
	return e.working.Context(maxItems)
}

// Delete removes one long-term record and reports whether it existed.
func (e *Engine) Delete(ctx context.Context, id string) bool {
	n, err := e.store.DeleteRecords(ctx, id)
	if err != nil {
		e.logger.Error().Err(err).Str("id", id).Msg("Delete failed")
		return false
	}
	return n > 0
}

// Get returns one long-term record.
func (e *Engine) Get(ctx context.Context, id string) (*model.Record, error) {
	return e.store.GetRecord(ctx, id)
}

// List returns long-term records whose content contains the given text.
func (e *Engine) List(ctx context.Context, contains, category string, limit int) ([]model.Record, error) {
	return e.store.FindRecords(ctx, store.FindParams{Contains: contains, Category: category, Limit: limit})
}
