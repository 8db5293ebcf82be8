package store

import (
	"context"
	"fmt"

	"github.com/rcliao/tiered-memory/internal/model"
)

// ExportAll returns every long-term record, most important first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM long_term_memories ORDER BY importance DESC, created_at DESC`)
}

// Import upserts records in a single transaction. Either every record is
// written or none are.
func (s *SQLiteStore) Import(ctx context.Context, records []model.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for _, r := range records {
		if r.Category == "" {
			r.Category = model.CategoryGeneral
		}
		if r.LastAccess.IsZero() {
			r.LastAccess = r.CreatedAt
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO long_term_memories (id, content, category, embedding, importance, access_count, created_at, last_access)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Content, r.Category, encodeVector(r.Embedding), r.Importance, r.AccessCount,
			formatTime(r.CreatedAt), formatTime(r.LastAccess))
		if err != nil {
			return 0, fmt.Errorf("import record %s: %w", r.ID, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return imported, nil
}
