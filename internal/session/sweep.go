package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/tiered-memory/internal/chunker"
	"github.com/rcliao/tiered-memory/internal/dedup"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/rank"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/summarize"
)

// ProcessType is the process_log type written by sweeps.
const ProcessType = "session_to_long_term"

// Sweep defaults.
const (
	DefaultInterval           = 100
	DefaultTurnLimit          = 100
	DefaultDuplicateThreshold = 0.90
)

// ErrNoSummarizer is reported when a sweep has nothing to extract facts with.
var ErrNoSummarizer = errors.New("no summarizer configured")

// Reconciler writes a candidate into long-term memory.
type Reconciler interface {
	Reconcile(ctx context.Context, c dedup.Candidate) (*dedup.Outcome, error)
}

// SweepOptions configures a Sweeper.
type SweepOptions struct {
	Turns      store.TurnStore
	Runs       store.ProcessLogger
	Summarizer summarize.Summarizer
	Reconciler Reconciler
	Neighbors  dedup.NeighborFinder
	Embedder   embedding.Embedder

	// Interval is the unprocessed turn count that makes a non-forced sweep run.
	Interval  int
	TurnLimit int
	Batch     chunker.Options
	// DuplicateThreshold skips facts whose best neighbor scores at least this.
	DuplicateThreshold float64
	Logger             zerolog.Logger
}

// Report summarizes one sweep.
type Report struct {
	RunID     string `json:"run_id,omitempty"`
	Ran       bool   `json:"ran"`
	Pending   int    `json:"pending"`
	Turns     int    `json:"turns"`
	Extracted int    `json:"extracted"`
	Saved     int    `json:"saved"`
	Skipped   int    `json:"skipped"`
	Rejected  int    `json:"rejected"`
	Error     string `json:"error,omitempty"`
}

// Sweeper moves facts from the transcript into long-term memory.
type Sweeper struct {
	opts   SweepOptions
	logger zerolog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(opts SweepOptions) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.TurnLimit <= 0 {
		opts.TurnLimit = DefaultTurnLimit
	}
	if opts.Batch.BatchSize <= 0 {
		opts.Batch.BatchSize = chunker.DefaultBatchSize
	}
	if opts.Batch.ItemLimit <= 0 {
		opts.Batch.ItemLimit = chunker.DefaultItemLimit
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = DefaultDuplicateThreshold
	}
	return &Sweeper{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "sweep").Logger(),
	}
}

// factRoles are the roles whose turns facts are extracted from. Assistant
// turns are consumed by a sweep but never mined.
var factRoles = []string{model.RoleUser, model.RoleNote}

// Sweep extracts facts from unprocessed turns and reconciles them into
// long-term memory. Unless force is set it does nothing until Interval user or
// note turns are pending. Every loaded turn, assistant turns included, is
// marked processed and the run is logged whether or not extraction succeeds;
// only failure to read the transcript is returned as an error.
func (s *Sweeper) Sweep(ctx context.Context, force bool) (*Report, error) {
	report := &Report{}
	pending, err := s.opts.Turns.CountTurns(ctx, store.TurnParams{Roles: factRoles, Unprocessed: true})
	if err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	report.Pending = pending
	if !force && pending < s.opts.Interval {
		return report, nil
	}

	turns, err := s.opts.Turns.ListTurns(ctx, store.TurnParams{
		Unprocessed: true,
		Limit:       s.opts.TurnLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	report.Ran = true
	report.Turns = len(turns)
	if len(turns) == 0 {
		return report, nil
	}

	started := time.Now()
	defer s.finish(ctx, turns, report, started)

	facts, err := s.extract(ctx, turns)
	if err != nil {
		report.Error = err.Error()
		s.logger.Warn().Err(err).Int("turns", len(turns)).Msg("Fact extraction failed, marking turns processed")
		return report, nil
	}
	report.Extracted = len(facts)

	for _, fact := range facts {
		if ctx.Err() != nil {
			report.Error = ctx.Err().Error()
			break
		}
		s.save(ctx, fact, report)
	}
	return report, nil
}

// finish marks the loaded turns processed and records the run. It runs even
// when the caller's context is done.
func (s *Sweeper) finish(ctx context.Context, turns []model.Turn, report *Report, started time.Time) {
	ctx = context.WithoutCancel(ctx)

	ids := make([]int64, len(turns))
	for i, t := range turns {
		ids[i] = t.ID
	}
	if err := s.opts.Turns.MarkProcessed(ctx, ids); err != nil {
		s.logger.Error().Err(err).Int("turns", len(ids)).Msg("Failed to mark turns processed")
	}

	if s.opts.Runs != nil {
		id, err := s.opts.Runs.LogProcess(ctx, store.ProcessEntry{
			Type:       ProcessType,
			Count:      len(turns),
			Error:      report.Error,
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to write process log")
		}
		report.RunID = id
	}

	s.logger.Info().
		Int("turns", report.Turns).
		Int("extracted", report.Extracted).
		Int("saved", report.Saved).
		Int("skipped", report.Skipped).
		Msg("Session sweep finished")
}

// extract runs every batch of user and note turns through the summarizer.
// Facts are only returned when every batch succeeds.
func (s *Sweeper) extract(ctx context.Context, turns []model.Turn) ([]string, error) {
	turns = slices.DeleteFunc(slices.Clone(turns), func(t model.Turn) bool {
		return !slices.Contains(factRoles, t.Role)
	})
	if len(turns) == 0 {
		return nil, nil
	}
	if s.opts.Summarizer == nil {
		return nil, ErrNoSummarizer
	}

	var facts []string
	seen := make(map[string]bool)
	for i, batch := range chunker.Split(turns, s.opts.Batch) {
		if batch.Text == "" {
			continue
		}
		out, err := s.opts.Summarizer.Summarize(ctx, extractSystemPrompt, extractPrompt(batch.Text))
		if err != nil && !errors.Is(err, summarize.ErrEmptyResponse) {
			return nil, fmt.Errorf("extract batch %d: %w", i, err)
		}
		for _, f := range ParseFacts(out) {
			h := embedding.ContentHash(f)
			if !seen[h] {
				seen[h] = true
				facts = append(facts, f)
			}
		}
	}
	return facts, nil
}

func (s *Sweeper) save(ctx context.Context, fact string, report *Report) {
	if dup := s.nearDuplicate(ctx, fact); dup {
		report.Skipped++
		return
	}

	out, err := s.opts.Reconciler.Reconcile(ctx, dedup.Candidate{Text: fact})
	switch {
	case errors.Is(err, dedup.ErrInvalidContent):
		report.Rejected++
	case err != nil:
		report.Rejected++
		s.logger.Warn().Err(err).Str("fact", fact).Msg("Failed to save extracted fact")
	case out.Skipped:
		report.Skipped++
	default:
		report.Saved++
	}
}

// nearDuplicate reports whether fact is already stored almost verbatim.
func (s *Sweeper) nearDuplicate(ctx context.Context, fact string) bool {
	if s.opts.Embedder == nil || s.opts.Neighbors == nil {
		return false
	}
	vec, err := s.opts.Embedder.Embed(ctx, fact)
	if err != nil {
		return false
	}
	hits, err := s.opts.Neighbors.SearchVector(ctx, vec, fact, rank.Options{
		TopK:     1,
		MinScore: s.opts.DuplicateThreshold,
	})
	return err == nil && len(hits) > 0
}
