package store

import (
	"context"
	"strings"

	"github.com/rcliao/tiered-memory/internal/model"
)

// FindParams holds parameters for a plain substring lookup.
type FindParams struct {
	Contains string
	Category string
	Limit    int
}

// FindRecords returns records whose content contains the given substring,
// newest first. It is the non-semantic lookup used for browsing.
func (s *SQLiteStore) FindRecords(ctx context.Context, p FindParams) ([]model.Record, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1 = 1"}
	var args []interface{}

	if p.Contains != "" {
		where = append(where, "content LIKE ?")
		args = append(args, "%"+p.Contains+"%")
	}
	if p.Category != "" {
		where = append(where, "category = ?")
		args = append(args, p.Category)
	}
	args = append(args, limit)

	return s.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM long_term_memories WHERE `+strings.Join(where, " AND ")+
			` ORDER BY created_at DESC, id LIMIT ?`, args...)
}
