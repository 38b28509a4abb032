package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"intake-router/internal/domain"
)

const (
	// DefaultHistoryLimit bounds the stored turns per session, oldest
	// evicted first.
	DefaultHistoryLimit = 10
	// DefaultSessionTTL is the sliding session lifetime, refreshed on
	// every write.
	DefaultSessionTTL = time.Hour
)

// SessionStore is the persistence contract the recorder consumes. Get
// returns (nil, nil) for an absent or expired session; Put overwrites the
// full record with a TTL renewed from now (last-writer-wins).
type SessionStore interface {
	Get(ctx context.Context, userID string) (*domain.Session, error)
	Put(ctx context.Context, session *domain.Session, ttl time.Duration) error
}

// Recorder appends turns to a user's session, trimming to a bounded history
// window. Every successful interaction extends the session lifetime, so an
// active conversation never expires mid-flow.
type Recorder struct {
	store  SessionStore
	limit  int
	ttl    time.Duration
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store. Non-positive limit
// or ttl fall back to the defaults.
func NewRecorder(store SessionStore, limit int, ttl time.Duration) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("conversation: session store must not be nil")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Recorder{store: store, limit: limit, ttl: ttl, logger: slog.Default()}, nil
}

// Load returns the user's current session. Store failures degrade to "no
// session" with a logged warning: intake must not hard-fail because history
// is momentarily unreachable. A malformed stored record degrades the same
// way.
func (r *Recorder) Load(ctx context.Context, userID string) *domain.Session {
	session, err := r.store.Get(ctx, userID)
	if err != nil {
		r.logger.Warn("session read failed, continuing without history",
			"userId", userID, "err", err)
		return nil
	}
	return session
}

// Record appends the turn to the user's session and writes it back with a
// refreshed TTL. The turn is recorded even when its extracted fields are
// empty, preserving message and pending-question continuity across a
// transient extraction failure. History is trimmed FIFO to the configured
// bound before the write.
func (r *Recorder) Record(ctx context.Context, userID string, turn domain.Turn) error {
	session := r.Load(ctx, userID)
	if session == nil {
		session = &domain.Session{UserID: userID}
	}

	session.Turns = append(session.Turns, turn)
	if n := len(session.Turns); n > r.limit {
		session.Turns = session.Turns[n-r.limit:]
	}

	if err := r.store.Put(ctx, session, r.ttl); err != nil {
		return fmt.Errorf("conversation: record turn: %w", err)
	}
	return nil
}
