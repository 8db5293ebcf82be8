// Package store provides durable storage for long-term records, session turns and
// cached embeddings, with a SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("not found")

// ListParams holds parameters for listing long-term records.
type ListParams struct {
	Category string
	// WithEmbedding restricts the result to records that carry a vector.
	WithEmbedding bool
	Limit         int // 0 means no limit
}

// ForgetParams selects long-term records that are safe to drop.
type ForgetParams struct {
	ImportanceBelow float64
	IdleSince       time.Time
}

// TurnParams holds parameters for reading session turns.
type TurnParams struct {
	Roles       []string
	Unprocessed bool
	SinceDate   string // YYYY-MM-DD, inclusive
	Limit       int
	Newest      bool // order newest first instead of oldest first
}

// ProcessEntry is one row of the background job log.
type ProcessEntry struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordStore is the long-term record surface used by ranking and reconciliation.
type RecordStore interface {
	// PutRecord inserts a record, or replaces the one with the same id.
	PutRecord(ctx context.Context, r model.Record) error

	// GetRecord returns a record by id, or ErrNotFound.
	GetRecord(ctx context.Context, id string) (*model.Record, error)

	// ListRecords returns records matching the filters, newest first.
	ListRecords(ctx context.Context, p ListParams) ([]model.Record, error)

	// DeleteRecords removes the given ids and reports how many existed.
	DeleteRecords(ctx context.Context, ids ...string) (int, error)

	// ReplaceRecords atomically deletes ids and writes r.
	ReplaceRecords(ctx context.Context, ids []string, r model.Record) error

	// TouchRecords bumps access counters. Unknown ids are ignored.
	TouchRecords(ctx context.Context, ids []string, at time.Time) error
}

// TurnStore is the session transcript surface.
type TurnStore interface {
	AppendTurn(ctx context.Context, t model.Turn) (int64, error)
	ListTurns(ctx context.Context, p TurnParams) ([]model.Turn, error)
	CountTurns(ctx context.Context, p TurnParams) (int, error)
	MarkProcessed(ctx context.Context, ids []int64) error
}

// EmbeddingCacheStore persists content-hash keyed vectors.
type EmbeddingCacheStore interface {
	GetCachedEmbedding(ctx context.Context, hash string) (model.Vector, bool, error)
	PutCachedEmbedding(ctx context.Context, hash string, v model.Vector) error
}

// ProcessLogger records background job runs.
type ProcessLogger interface {
	LogProcess(ctx context.Context, e ProcessEntry) (string, error)
}

// Store is the full storage surface of the engine.
type Store interface {
	RecordStore
	TurnStore
	EmbeddingCacheStore
	ProcessLogger

	// Close closes the store.
	Close() error
}
