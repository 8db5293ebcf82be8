package store

import (
	"context"
	"database/sql"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath           string         `json:"db_path"`
	DBSizeBytes      int64          `json:"db_size_bytes"`
	LongTerm         int            `json:"long_term"`
	Categories       map[string]int `json:"categories"`
	OldestRecord     *time.Time     `json:"oldest_record,omitempty"`
	NewestRecord     *time.Time     `json:"newest_record,omitempty"`
	SessionTurns     int            `json:"session_turns"`
	UnprocessedTurns int            `json:"unprocessed_turns"`
	CachedEmbeddings int            `json:"cached_embeddings"`
	LastRuns         []ProcessEntry `json:"last_runs,omitempty"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, Categories: map[string]int{}}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM long_term_memories`).Scan(&st.LongTerm)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_turns`).Scan(&st.SessionTurns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_turns WHERE processed = 0`).Scan(&st.UnprocessedTurns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&st.CachedEmbeddings)

	var oldest, newest sql.NullString
	s.db.QueryRowContext(ctx,
		`SELECT MIN(created_at), MAX(created_at) FROM long_term_memories`).Scan(&oldest, &newest)
	if oldest.Valid {
		t := parseTime(oldest.String)
		st.OldestRecord = &t
	}
	if newest.Valid {
		t := parseTime(newest.String)
		st.NewestRecord = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM long_term_memories GROUP BY category ORDER BY COUNT(*) DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var n int
		rows.Scan(&cat, &n)
		st.Categories[cat] = n
	}

	st.LastRuns, err = s.LastRuns(ctx)
	return st, err
}
