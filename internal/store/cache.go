package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// GetCachedEmbedding looks up a vector by content hash.
func (s *SQLiteStore) GetCachedEmbedding(ctx context.Context, hash string) (model.Vector, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache WHERE content_hash = ?`, hash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := decodeVector(blob)
	if err != nil {
		return nil, false, err
	}
	return v, len(v) > 0, nil
}

// PutCachedEmbedding stores a vector under a content hash.
func (s *SQLiteStore) PutCachedEmbedding(ctx context.Context, hash string, v model.Vector) error {
	if len(v) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding_cache (content_hash, embedding, created_at) VALUES (?, ?, ?)`,
		hash, encodeVector(v), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("cache embedding: %w", err)
	}
	return nil
}

// PruneEmbeddingCache removes cache rows older than the cutoff.
func (s *SQLiteStore) PruneEmbeddingCache(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE created_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune embedding cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearEmbeddingCache deletes every cached vector.
func (s *SQLiteStore) ClearEmbeddingCache(ctx context.Context) (int, error) {
	return s.clearTable(ctx, "embedding_cache")
}
