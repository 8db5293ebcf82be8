package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// AppendTurn appends a turn to the transcript and returns its row id.
func (s *SQLiteStore) AppendTurn(ctx context.Context, t model.Turn) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Date == "" {
		t.Date = t.CreatedAt.Local().Format("2006-01-02")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO session_turns (session_id, date, role, content, embedding, processed, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		t.SessionID, t.Date, t.Role, t.Content, encodeVector(t.Embedding), formatTime(t.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w", err)
	}
	return res.LastInsertId()
}

// ListTurns returns turns matching the filters.
func (s *SQLiteStore) ListTurns(ctx context.Context, p TurnParams) ([]model.Turn, error) {
	where, args := turnFilter(p)

	order := "ASC"
	if p.Newest {
		order = "DESC"
	}
	query := `SELECT id, session_id, date, role, content, embedding, processed, created_at
		FROM session_turns WHERE ` + where + ` ORDER BY id ` + order
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var blob []byte
		var processed int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Date, &t.Role, &t.Content, &blob, &processed, &createdAt); err != nil {
			return nil, err
		}
		if t.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("turn %d: %w", t.ID, err)
		}
		t.Processed = processed != 0
		t.CreatedAt = parseTime(createdAt)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountTurns counts turns matching the filters. Limit is ignored.
func (s *SQLiteStore) CountTurns(ctx context.Context, p TurnParams) (int, error) {
	where, args := turnFilter(p)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_turns WHERE `+where, args...).Scan(&n)
	return n, err
}

// MarkProcessed flags the given turns as consumed by a sweep.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE session_turns SET processed = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
	}
	return tx.Commit()
}

// PruneTurns deletes processed turns created before the cutoff.
func (s *SQLiteStore) PruneTurns(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM session_turns WHERE processed = 1 AND created_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune turns: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearTurns deletes the whole transcript.
func (s *SQLiteStore) ClearTurns(ctx context.Context) (int, error) {
	return s.clearTable(ctx, "session_turns")
}

func turnFilter(p TurnParams) (string, []interface{}) {
	where := []string{"1 = 1"}
	var args []interface{}

	if p.Unprocessed {
		where = append(where, "processed = 0")
	}
	if p.SinceDate != "" {
		where = append(where, "date >= ?")
		args = append(args, p.SinceDate)
	}
	if len(p.Roles) > 0 {
		marks := make([]string, len(p.Roles))
		for i, r := range p.Roles {
			marks[i] = "?"
			args = append(args, r)
		}
		where = append(where, "role IN ("+strings.Join(marks, ", ")+")")
	}
	return strings.Join(where, " AND "), args
}
