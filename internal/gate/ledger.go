package gate

import (
	"time"

	"github.com/lazypower/nudge/internal/friction"
)

// Record is one successful firing.
type Record struct {
	Type    friction.Type `json:"type"`
	At      time.Time     `json:"at"`
	Message string        `json:"message"`
}

// Ledger is a session's firing history. Records are append-only.
type Ledger struct {
	StartedAt time.Time `json:"started_at"`
	Records   []Record  `json:"records"`
}

// Touch starts the session clock on first reference.
func (l *Ledger) Touch(now time.Time) {
	if l.StartedAt.IsZero() {
		l.StartedAt = now
	}
}

// Clone returns a copy of l that shares no records with it.
func (l *Ledger) Clone() Ledger {
	return Ledger{StartedAt: l.StartedAt, Records: append([]Record(nil), l.Records...)}
}

// Age returns the elapsed session time at now.
func (l *Ledger) Age(now time.Time) time.Duration {
	if l.StartedAt.IsZero() || now.Before(l.StartedAt) {
		return 0
	}
	return now.Sub(l.StartedAt)
}

// Append records a firing of t.
func (l *Ledger) Append(t friction.Type, at time.Time, message string) {
	l.Records = append(l.Records, Record{Type: t, At: at, Message: message})
}

// Last returns the most recent record of type t.
func (l *Ledger) Last(t friction.Type) (Record, bool) {
	for i := len(l.Records) - 1; i >= 0; i-- {
		if l.Records[i].Type == t {
			return l.Records[i], true
		}
	}
	return Record{}, false
}

// Count returns how many times t has fired.
func (l *Ledger) Count(t friction.Type) int {
	n := 0
	for _, r := range l.Records {
		if r.Type == t {
			n++
		}
	}
	return n
}
