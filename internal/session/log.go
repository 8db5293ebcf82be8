// Package session records the append-only conversation transcript and sweeps it
// into long-term memory.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
	"github.com/rcliao/tiered-memory/internal/store"
)

// DefaultRecentLimit caps Recent when no limit is given.
const DefaultRecentLimit = 50

// ErrEmptyTurn is returned when a turn has no content.
var ErrEmptyTurn = errors.New("empty turn")

// Log appends turns for one session.
type Log struct {
	store     store.TurnStore
	embedder  embedding.Embedder
	sessionID string
	logger    zerolog.Logger
}

// NewLog creates a Log. An empty sessionID gets a fresh UUID. embedder may be
// nil, in which case turns are stored without vectors.
func NewLog(s store.TurnStore, embedder embedding.Embedder, sessionID string, logger zerolog.Logger) *Log {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Log{
		store:     s,
		embedder:  embedder,
		sessionID: sessionID,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// SessionID returns the id stamped on appended turns.
func (l *Log) SessionID() string { return l.sessionID }

// WithSession returns a Log that shares l's store but writes under sessionID.
func (l *Log) WithSession(sessionID string) *Log {
	if sessionID == "" || sessionID == l.sessionID {
		return l
	}
	cp := *l
	cp.sessionID = sessionID
	return &cp
}

// Append writes one turn. The embedding is best effort: a provider failure is
// logged and the turn is stored without a vector.
func (l *Log) Append(ctx context.Context, role, content string) (*model.Turn, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyTurn
	}
	if !model.ValidRoles[role] {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	t := model.Turn{
		SessionID: l.sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if l.embedder != nil {
		vec, err := l.embedder.Embed(ctx, content)
		if err != nil {
			l.logger.Warn().Err(err).Msg("Turn embedding failed, storing without vector")
		} else {
			t.Embedding = vec
		}
	}

	id, err := l.store.AppendTurn(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}
	t.ID = id
	t.Date = t.CreatedAt.Local().Format("2006-01-02")
	return &t, nil
}

// Recent returns turns from the last days calendar days, newest first. days
// <= 0 means today only.
func (l *Log) Recent(ctx context.Context, days, limit int) ([]model.Turn, error) {
	if days <= 0 {
		days = 1
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	since := time.Now().AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	return l.store.ListTurns(ctx, store.TurnParams{
		SinceDate: since,
		Limit:     limit,
		Newest:    true,
	})
}
