package rank

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/store"
)

// Searcher runs scoring passes over the full long-term store.
type Searcher struct {
	store    store.RecordStore
	embedder embedding.Embedder
	logger   zerolog.Logger
}

// NewSearcher creates a Searcher. embedder may be nil, in which case every
// text query returns no results.
func NewSearcher(s store.RecordStore, embedder embedding.Embedder, logger zerolog.Logger) *Searcher {
	return &Searcher{
		store:    s,
		embedder: embedder,
		logger:   logger.With().Str("component", "rank").Logger(),
	}
}

// Search embeds query and scores every stored record against it. A failed
// embedding degrades to an empty result.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Scored, error) {
	if s.embedder == nil {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Query embedding failed, returning no results")
		return nil, nil
	}
	return s.SearchVector(ctx, vec, query, opts)
}

// SearchVector scores every stored record against a precomputed vector.
func (s *Searcher) SearchVector(ctx context.Context, vec embedding.Vector, queryText string, opts Options) ([]Scored, error) {
	candidates, err := s.store.ListRecords(ctx, store.ListParams{
		Category:      opts.Category,
		WithEmbedding: true,
	})
	if err != nil {
		return nil, err
	}

	results := Score(ctx, vec, queryText, candidates, opts)
	if ctx.Err() != nil {
		s.logger.Debug().Int("results", len(results)).Msg("Deadline hit mid-scan, returning partial results")
	}

	if opts.Touch && len(results) > 0 {
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.Record.ID
		}
		// Access bookkeeping outlives the caller's deadline.
		if err := s.store.TouchRecords(context.WithoutCancel(ctx), ids, time.Now()); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to update access stats")
		}
	}
	return results, nil
}
