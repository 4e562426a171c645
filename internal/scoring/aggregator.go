package scoring

import (
	"math"
	"time"
)

// Aggregation constants.
//
//   - Repeat applications of the same scenario key are damped by
//     DiminishingFactor^min(occurrence, MaxTrackedOccurrences).
//   - Contributions decay exponentially with HalfLife.
//   - Clarity starts at DefaultClarityBaseline; every other dimension at 0.
const (
	DiminishingFactor      = 0.7
	MaxTrackedOccurrences  = 5
	HalfLife               = 120 * time.Second
	DefaultClarityBaseline = 100.0

	// ActiveThreshold is the decay factor below which a contribution is
	// reported as fully decayed in breakdowns.
	ActiveThreshold = 0.01
)

// Contribution is one applied detection or engagement signal. It is never
// mutated after creation.
type Contribution struct {
	Key        string     `json:"key"`
	Delta      Dimensions `json:"delta"`
	At         time.Time  `json:"at"`
	Confidence float64    `json:"confidence"`
	Occurrence int        `json:"occurrence"`
}

// State is the score history of a single session. Contributions only grow.
type State struct {
	Contributions []Contribution `json:"contributions"`
	Occurrences   map[string]int `json:"occurrences"`
	StartedAt     time.Time      `json:"started_at"`
}

// NewState creates an empty score state for a session starting at start.
func NewState(start time.Time) *State {
	return &State{
		Occurrences: make(map[string]int),
		StartedAt:   start,
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() State {
	c := State{
		Contributions: append([]Contribution(nil), s.Contributions...),
		StartedAt:     s.StartedAt,
	}
	if s.Occurrences != nil {
		c.Occurrences = make(map[string]int, len(s.Occurrences))
		for k, v := range s.Occurrences {
			c.Occurrences[k] = v
		}
	}
	return c
}

// DiminishingMultiplier returns the damping applied to the given 0-based
// occurrence index.
func DiminishingMultiplier(occurrence int) float64 {
	if occurrence < 0 {
		occurrence = 0
	}
	if occurrence > MaxTrackedOccurrences {
		occurrence = MaxTrackedOccurrences
	}
	return math.Pow(DiminishingFactor, float64(occurrence))
}

// Decay returns the remaining influence of a contribution of the given age.
// Ages at or below zero keep full influence.
func Decay(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 / float64(HalfLife) * float64(age))
}

// Apply records a new contribution for key. The stored delta is
// base * confidence * DiminishingMultiplier(k-1) for the k-th application of
// key. The created contribution is returned.
func (s *State) Apply(key string, base Dimensions, confidence float64, at time.Time) Contribution {
	if s.Occurrences == nil {
		s.Occurrences = make(map[string]int)
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = at
	}

	occurrence := s.Occurrences[key]
	s.Occurrences[key] = occurrence + 1

	confidence = clampUnit(confidence)
	c := Contribution{
		Key:        key,
		Delta:      sanitize(base).Scale(confidence * DiminishingMultiplier(occurrence)),
		At:         at,
		Confidence: confidence,
		Occurrence: occurrence,
	}
	s.Contributions = append(s.Contributions, c)
	return c
}

// Current returns every dimension's score at now: the baseline plus the sum of
// all decayed contributions, clamped to [0,100]. It recomputes from the full
// history on each call so no periodic tick is needed.
func (s *State) Current(now time.Time, baselineClarity float64) Dimensions {
	total := Dimensions{Clarity: baselineClarity}
	for _, c := range s.Contributions {
		total = total.Add(c.Delta.Scale(Decay(now.Sub(c.At))))
	}
	return total.Clamp()
}

// Age returns how long the session has been scored as of now.
func (s *State) Age(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if d := now.Sub(s.StartedAt); d > 0 {
		return d
	}
	return 0
}

// sanitize zeroes NaN and infinite deltas so they cannot poison a sum.
func sanitize(d Dimensions) Dimensions {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return Dimensions{
		Intent:      fix(d.Intent),
		Friction:    fix(d.Friction),
		Clarity:     fix(d.Clarity),
		Receptivity: fix(d.Receptivity),
		Value:       fix(d.Value),
	}
}
