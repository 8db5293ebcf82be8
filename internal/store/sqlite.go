package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/tiered-memory/internal/model"
)

// timeFormat is fixed width so stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// SQLiteStore implements Store using SQLite. All writes go through mu so the
// store behaves as a single writer regardless of how many goroutines share it.
type SQLiteStore struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// newID must be called with mu held; the entropy source is not goroutine safe.
func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS long_term_memories (
		id           TEXT PRIMARY KEY,
		content      TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT 'general',
		embedding    BLOB,
		importance   REAL NOT NULL DEFAULT 0.5,
		access_count INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL,
		last_access  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ltm_category ON long_term_memories(category);
	CREATE INDEX IF NOT EXISTS idx_ltm_created ON long_term_memories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_ltm_last_access ON long_term_memories(last_access);

	CREATE TABLE IF NOT EXISTS session_turns (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		date        TEXT NOT NULL,
		role        TEXT NOT NULL,
		content     TEXT NOT NULL,
		embedding   BLOB,
		processed   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON session_turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_turns_processed ON session_turns(processed, role);
	CREATE INDEX IF NOT EXISTS idx_turns_date ON session_turns(date);

	CREATE TABLE IF NOT EXISTS embedding_cache (
		content_hash TEXT PRIMARY KEY,
		embedding    BLOB NOT NULL,
		created_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS process_log (
		id           TEXT PRIMARY KEY,
		process_type TEXT NOT NULL,
		processed_count INTEGER NOT NULL DEFAULT 0,
		error        TEXT,
		started_at   TEXT NOT NULL,
		finished_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_process_log_type ON process_log(process_type, finished_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutRecord inserts or replaces a record. Replacing keeps the original
// created_at and access count since the id is derived from identical content.
func (s *SQLiteStore) PutRecord(ctx context.Context, r model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertRecord(ctx, s.db, r)
}

// ReplaceRecords deletes ids and writes r in one transaction. When the write
// fails none of ids are removed.
func (s *SQLiteStore) ReplaceRecords(ctx context.Context, ids []string, r model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM long_term_memories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
	}
	if err := upsertRecord(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertRecord(ctx context.Context, db execer, r model.Record) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastAccess.IsZero() {
		r.LastAccess = r.CreatedAt
	}
	if r.Category == "" {
		r.Category = model.CategoryGeneral
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO long_term_memories (id, content, category, embedding, importance, access_count, created_at, last_access)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			embedding = COALESCE(excluded.embedding, long_term_memories.embedding),
			importance = excluded.importance,
			last_access = excluded.last_access`,
		r.ID, r.Content, r.Category, encodeVector(r.Embedding), r.Importance, r.AccessCount,
		formatTime(r.CreatedAt), formatTime(r.LastAccess))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// GetRecord returns a record by id.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM long_term_memories WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecords returns records matching the filters, newest first.
func (s *SQLiteStore) ListRecords(ctx context.Context, p ListParams) ([]model.Record, error) {
	where := []string{"1 = 1"}
	var args []interface{}

	if p.Category != "" {
		where = append(where, "category = ?")
		args = append(args, p.Category)
	}
	if p.WithEmbedding {
		where = append(where, "embedding IS NOT NULL")
	}

	query := `SELECT ` + recordColumns + ` FROM long_term_memories WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	return s.queryRecords(ctx, query, args...)
}

// DeleteRecords deletes all given ids in one transaction.
func (s *SQLiteStore) DeleteRecords(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleted := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM long_term_memories WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("delete record: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// TouchRecords increments access_count and refreshes last_access.
func (s *SQLiteStore) TouchRecords(ctx context.Context, ids []string, at time.Time) error {
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

	ts := formatTime(at)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE long_term_memories SET access_count = access_count + 1, last_access = ? WHERE id = ?`,
			ts, id); err != nil {
			return fmt.Errorf("touch record: %w", err)
		}
	}
	return tx.Commit()
}

// ForgetRecords deletes records that were never retrieved, have low importance
// and have been idle since before the cutoff.
func (s *SQLiteStore) ForgetRecords(ctx context.Context, p ForgetParams) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM long_term_memories
		 WHERE importance < ? AND last_access < ? AND access_count = 0`,
		p.ImportanceBelow, formatTime(p.IdleSince))
	if err != nil {
		return 0, fmt.Errorf("forget records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// TrimRecords keeps at most max records, dropping the least important and
// least recently accessed first.
func (s *SQLiteStore) TrimRecords(ctx context.Context, max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM long_term_memories WHERE id IN (
			SELECT id FROM long_term_memories
			ORDER BY importance ASC, last_access ASC
			LIMIT MAX((SELECT COUNT(*) FROM long_term_memories) - ?, 0)
		)`, max)
	if err != nil {
		return 0, fmt.Errorf("trim records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ClearRecords deletes every long-term record.
func (s *SQLiteStore) ClearRecords(ctx context.Context) (int, error) {
	return s.clearTable(ctx, "long_term_memories")
}

func (s *SQLiteStore) clearTable(ctx context.Context, table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table)
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const recordColumns = `id, content, category, embedding, importance, access_count, created_at, last_access`

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner) (model.Record, error) {
	var r model.Record
	var blob []byte
	var createdAt, lastAccess string

	err := sc.Scan(&r.ID, &r.Content, &r.Category, &blob, &r.Importance, &r.AccessCount, &createdAt, &lastAccess)
	if err != nil {
		return r, err
	}

	r.Embedding, err = decodeVector(blob)
	if err != nil {
		return r, fmt.Errorf("record %s: %w", r.ID, err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.LastAccess = parseTime(lastAccess)
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
