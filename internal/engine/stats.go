package engine

import (
	"context"

	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/store"
)

// Stats describes the state of every tier.
type Stats struct {
	*store.Stats
	Working         int                  `json:"working"`
	WorkingCapacity int                  `json:"working_capacity"`
	Embeddings      bool                 `json:"embeddings_enabled"`
	Summarizer      bool                 `json:"summarizer_enabled"`
	Cache           embedding.CacheStats `json:"embedding_cache"`
}

// Stats collects counts from the store, working memory and embedding cache.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	st, err := e.store.Stats(ctx, e.opts.DBPath)
	if err != nil {
		return nil, err
	}
	out := &Stats{
		Stats:           st,
		Working:         e.working.Len(),
		WorkingCapacity: e.working.Capacity(),
		Embeddings:      e.embedder != nil,
		Summarizer:      e.opts.Summarizer != nil,
	}
	if e.cache != nil {
		out.Cache = e.cache.Stats()
	}
	return out, nil
}
