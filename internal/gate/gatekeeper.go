package gate

import (
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/shop"
)

// ErrUnknownType is returned when a type with no registered rule reaches the
// gatekeeper.
var ErrUnknownType = errors.New("unregistered intervention type")

// Denial reasons reported by CanFire.
const (
	ReasonAllowed    = "allowed"
	ReasonTooYoung   = "session_too_young"
	ReasonCooldown   = "cooldown"
	ReasonFiredOnce  = "already_fired"
	ReasonCapReached = "occurrence_cap_reached"
)

// Gatekeeper applies per-type rules to a session's ledger.
type Gatekeeper struct {
	rules map[friction.Type]Rule
}

// NewGatekeeper creates a gatekeeper with the given rule table. A nil table
// uses DefaultRules.
func NewGatekeeper(rules map[friction.Type]Rule) *Gatekeeper {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Gatekeeper{rules: rules}
}

// Rule returns the rule registered for t.
func (g *Gatekeeper) Rule(t friction.Type) (Rule, bool) {
	r, ok := g.rules[t]
	return r, ok
}

// CanFire reports whether t may fire for the session at now. Checks run in
// order: lazy session start, minimum session age, secondary gate, cooldown,
// occurrence cap. The reason names the first failing check.
func (g *Gatekeeper) CanFire(l *Ledger, t friction.Type, counters shop.Counters, now time.Time) (bool, string, error) {
	rule, ok := g.rules[t]
	if !ok {
		return false, "", fmt.Errorf("can fire %q: %w", t, ErrUnknownType)
	}

	l.Touch(now)

	if rule.MinSessionAge > 0 && l.Age(now) < rule.MinSessionAge {
		return false, ReasonTooYoung, nil
	}

	if rule.Gate != nil {
		if pass, reason := rule.Gate(counters); !pass {
			return false, reason, nil
		}
	}

	if last, fired := l.Last(t); fired {
		if rule.Cooldown == Forever {
			return false, ReasonFiredOnce, nil
		}
		if now.Sub(last.At) < rule.Cooldown {
			return false, ReasonCooldown, nil
		}
	}

	if rule.MaxFirings > 0 && l.Count(t) >= rule.MaxFirings {
		return false, ReasonCapReached, nil
	}

	return true, ReasonAllowed, nil
}

// Stage returns the escalation stage for the next firing of t: one past the
// number of prior firings, capped at the rule's stage count.
func (g *Gatekeeper) Stage(l *Ledger, t friction.Type) int {
	stages := 1
	if rule, ok := g.rules[t]; ok && rule.Stages > 0 {
		stages = rule.Stages
	}
	stage := l.Count(t) + 1
	if stage > stages {
		stage = stages
	}
	return stage
}
