// Package session holds per-session decision state and the stores that keep
// it between events.
package session

import (
	"context"
	"time"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/gate"
	"github.com/lazypower/nudge/internal/scoring"
)

// Session is everything the engine remembers about one shopper session.
type Session struct {
	ID          string        `json:"id"`
	Score       scoring.State `json:"score"`
	Ledger      gate.Ledger   `json:"ledger"`
	History     event.History `json:"history"`
	DismissedAt time.Time     `json:"dismissed_at,omitempty"`
	InPayment   bool          `json:"in_payment"`
	Events      int           `json:"events"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// New creates an empty session.
func New(id string) *Session {
	return &Session{ID: id}
}

// Clone returns a deep copy of s, so a failed update can be discarded.
func (s *Session) Clone() *Session {
	c := *s
	c.Score = s.Score.Clone()
	c.Ledger = s.Ledger.Clone()
	c.History = s.History.Clone()
	return &c
}

// Dismissed reports whether an intervention was dismissed within window of
// now.
func (s *Session) Dismissed(now time.Time, window time.Duration) bool {
	if s.DismissedAt.IsZero() {
		return false
	}
	return now.Sub(s.DismissedAt) < window
}

// Store keeps sessions by ID. Get returns nil, nil for an unknown session.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Leaser is implemented by stores shared between processes. The engine holds
// a session's lease for the whole read, update and write of one event.
type Leaser interface {
	Lease(ctx context.Context, id string) (release func() error, err error)
}
