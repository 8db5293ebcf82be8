package store

import (
	"context"
	"fmt"
	"time"
)

// LogProcess appends a job run to process_log. An empty ID gets a fresh ULID.
func (s *SQLiteStore) LogProcess(ctx context.Context, e ProcessEntry) (string, error) {
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = s.newID()
	}

	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO process_log (id, process_type, processed_count, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Count, errText, formatTime(e.StartedAt), formatTime(e.FinishedAt))
	if err != nil {
		return "", fmt.Errorf("log process: %w", err)
	}
	return e.ID, nil
}

// LastRuns returns the most recent run of each process type.
func (s *SQLiteStore) LastRuns(ctx context.Context) ([]ProcessEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.process_type, p.processed_count, COALESCE(p.error, ''), p.started_at, p.finished_at
		 FROM process_log p
		 INNER JOIN (
			SELECT process_type, MAX(finished_at) AS last FROM process_log GROUP BY process_type
		 ) latest ON p.process_type = latest.process_type AND p.finished_at = latest.last
		 ORDER BY p.process_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ProcessEntry
	for rows.Next() {
		var e ProcessEntry
		var started, finished string
		if err := rows.Scan(&e.ID, &e.Type, &e.Count, &e.Error, &started, &finished); err != nil {
			return nil, err
		}
		e.StartedAt = parseTime(started)
		e.FinishedAt = parseTime(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
