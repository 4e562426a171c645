package engine

import (
	"encoding/json"
	"time"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/gate"
	"github.com/lazypower/nudge/internal/resolver"
	"github.com/lazypower/nudge/internal/scoring"
	"github.com/lazypower/nudge/internal/script"
	"github.com/lazypower/nudge/internal/store"
)

// Decision is a fired intervention, ready for delivery.
type Decision struct {
	ID           string             `json:"id"`
	SessionID    string             `json:"session_id"`
	Type         friction.Type      `json:"type"`
	Priority     int                `json:"priority"`
	Stage        int                `json:"stage"`
	Probability  float64            `json:"probability"`
	Reason       string             `json:"reason"`
	Policy       string             `json:"policy"`
	Scores       scoring.Dimensions `json:"scores"`
	Context      resolver.Context   `json:"context"`
	Intervention script.Generated   `json:"intervention"`
	At           time.Time          `json:"at"`
}

// record converts d to its journal row.
func (d *Decision) record() *store.Intervention {
	ctx, err := json.Marshal(d.Context)
	if err != nil {
		ctx = []byte("{}")
	}
	return &store.Intervention{
		ID:          d.ID,
		SessionID:   d.SessionID,
		Type:        string(d.Type),
		Priority:    d.Priority,
		Stage:       d.Stage,
		Probability: d.Probability,
		Reason:      d.Reason,
		Policy:      d.Policy,
		UIType:      string(d.Intervention.UIType),
		Script:      d.Intervention.Script,
		Context:     string(ctx),
		CreatedAt:   d.At.UnixMilli(),
	}
}

// ScoreSnapshot is the read-only telemetry view of a session.
type ScoreSnapshot struct {
	SessionID     string            `json:"session_id"`
	At            time.Time         `json:"at"`
	SessionAgeMs  int64             `json:"session_age_ms"`
	Breakdown     scoring.Breakdown `json:"breakdown"`
	Probability   float64           `json:"probability"`
	Dismissed     bool              `json:"dismissed"`
	InPayment     bool              `json:"in_payment"`
	Events        int               `json:"events"`
	Interventions []gate.Record     `json:"interventions"`
}
