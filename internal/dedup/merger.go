package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/tiered-memory/internal/classify"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/rank"
	"github.com/rcliao/tiered-memory/internal/store"
	"github.com/rcliao/tiered-memory/internal/summarize"
)

// Defaults for neighbor search.
const (
	DefaultThreshold     = 0.75
	DefaultNeighborLimit = 5
)

// NeighborFinder returns stored records close to a vector.
type NeighborFinder interface {
	SearchVector(ctx context.Context, vec embedding.Vector, queryText string, opts rank.Options) ([]rank.Scored, error)
}

// Options configures a Merger.
type Options struct {
	Store      store.RecordStore
	Neighbors  NeighborFinder
	Embedder   embedding.Embedder
	Summarizer summarize.Summarizer // optional; without it merges keep the longest text
	Classifier classify.Classifier  // defaults to classify.NewKeyword()
	// Threshold is the minimum similarity for a record to count as a neighbor.
	Threshold     float64
	NeighborLimit int
	Logger        zerolog.Logger
}

// Candidate is text offered for long-term storage. A zero Category or
// Importance is filled in by the classifier.
type Candidate struct {
	Text       string
	Category   string
	Importance float64
}

// Outcome describes what Reconcile did.
type Outcome struct {
	Record *model.Record `json:"record,omitempty"`
	// Skipped means the text was already covered by Existing.
	Skipped  bool          `json:"skipped,omitempty"`
	Existing *model.Record `json:"existing,omitempty"`
	Merged   bool          `json:"merged,omitempty"`
	Deleted  []string      `json:"deleted,omitempty"`
}

// Merger reconciles new text with the long-term store.
type Merger struct {
	opts   Options
	logger zerolog.Logger
}

// NewMerger creates a Merger.
func NewMerger(opts Options) *Merger {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.NeighborLimit <= 0 {
		opts.NeighborLimit = DefaultNeighborLimit
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.NewKeyword()
	}
	return &Merger{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "dedup").Logger(),
	}
}

// Reconcile validates c, compares it with its nearest neighbors and writes the
// resulting record. Superseded neighbors are removed in the same transaction
// as the write, so a failed write leaves them in place.
func (m *Merger) Reconcile(ctx context.Context, c Candidate) (*Outcome, error) {
	text := strings.TrimSpace(c.Text)
	if err := Validate(text); err != nil {
		return nil, err
	}
	if m.opts.Embedder == nil {
		return nil, fmt.Errorf("embed candidate: %w", embedding.ErrNoEmbedding)
	}

	vec, err := m.opts.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed candidate: %w", err)
	}

	neighbors, err := m.opts.Neighbors.SearchVector(ctx, vec, text, rank.Options{
		TopK:     m.opts.NeighborLimit,
		MinScore: m.opts.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("find neighbors: %w", err)
	}

	for _, n := range neighbors {
		if IsRedundant(text, n.Record.Content) {
			existing := n.Record
			m.logger.Debug().Str("existing", existing.ID).Msg("Candidate already covered")
			return &Outcome{Skipped: true, Existing: &existing}, nil
		}
	}

	var superseded []string
	var toMerge []string
	importance := c.Importance
	for _, n := range neighbors {
		superseded = append(superseded, n.Record.ID)
		importance = max(importance, n.Record.Importance)
		if !IsRedundant(n.Record.Content, text) {
			toMerge = append(toMerge, n.Record.Content)
		}
	}

	final := text
	if len(toMerge) > 0 {
		final = m.merge(ctx, text, toMerge)
	}
	if err := Validate(final); err != nil {
		m.logger.Warn().Str("output", final).Msg("Merged text failed validation, save aborted")
		return nil, err
	}

	if final != text {
		if vec, err = m.opts.Embedder.Embed(ctx, final); err != nil {
			return nil, fmt.Errorf("embed merged: %w", err)
		}
	}

	category := c.Category
	classified, score := m.opts.Classifier.Classify(final)
	if category == "" {
		category = classified
	}
	if c.Importance == 0 {
		importance = max(importance, score)
	}

	now := time.Now().UTC()
	rec := model.Record{
		ID:         embedding.ContentHash(final),
		Content:    final,
		Category:   category,
		Embedding:  vec,
		Importance: importance,
		CreatedAt:  now,
		LastAccess: now,
	}

	if err := m.opts.Store.ReplaceRecords(ctx, superseded, rec); err != nil {
		return nil, fmt.Errorf("write record: %w", err)
	}

	if len(superseded) > 0 {
		m.logger.Info().Int("superseded", len(superseded)).Bool("merged", len(toMerge) > 0).
			Str("id", rec.ID).Msg("Reconciled memory with neighbors")
	}
	return &Outcome{Record: &rec, Merged: len(toMerge) > 0, Deleted: superseded}, nil
}

// merge asks the summarizer for one canonical text. A summarizer error falls
// back to the longest of the inputs.
func (m *Merger) merge(ctx context.Context, newText string, existing []string) string {
	all := append([]string{newText}, existing...)
	fallback := longest(all)

	if m.opts.Summarizer == nil {
		return fallback
	}
	out, err := m.opts.Summarizer.Summarize(ctx, mergeSystemPrompt, mergePrompt(newText, existing))
	if err != nil {
		m.logger.Warn().Err(err).Msg("Merge summarization failed, keeping longest text")
		return fallback
	}

	// Invalid output is returned as is; the caller re-validates and aborts.
	return truncateRunes(CleanLine(out), MaxMergedRunes)
}

// MergeTexts collapses a cluster of texts into one, with the same fallback
// rules as Reconcile. The result is not validated.
func (m *Merger) MergeTexts(ctx context.Context, texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	if len(texts) == 1 {
		return texts[0]
	}
	return m.merge(ctx, texts[0], texts[1:])
}
