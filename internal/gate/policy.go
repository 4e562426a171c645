package gate

import (
	"fmt"
	"math"
	"time"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/scoring"
)

// Decision thresholds shared by both policies.
const (
	IntentThreshold   = 60.0
	HelpNeedThreshold = 20.0

	// SoftRange is the width in score points over which the soft policy
	// ramps from unlikely to likely.
	SoftRange = 15.0

	MinProbability = 0.30
	MaxProbability = 0.95
)

// Policy names accepted by PolicyByName.
const (
	PolicySoft      = "soft"
	PolicyThreshold = "threshold"
)

// Result reasons.
const (
	ReasonFire         = "fire"
	ReasonDismissed    = "dismissed"
	ReasonInPayment    = "in_payment"
	ReasonLowIntent    = "intent_below_threshold"
	ReasonLowHelpNeed  = "help_need_below_threshold"
	ReasonFarBelow     = "far_below_threshold"
	ReasonDrawMissed   = "draw_missed"
	ReasonNoRandSource = "no_random_source"
)

// Rand is the random source for the Bernoulli draw. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

// Input is what a policy decides on.
type Input struct {
	Type       friction.Type
	Scores     scoring.Dimensions
	Dismissed  bool
	InPayment  bool
	SessionAge time.Duration
}

// Result is a policy outcome. Probability is 1 or 0 for the threshold policy.
type Result struct {
	Fire        bool          `json:"fire"`
	Type        friction.Type `json:"type,omitempty"`
	Probability float64       `json:"probability"`
	Reason      string        `json:"reason"`
}

// Policy decides whether an allowed intervention actually fires.
type Policy interface {
	Name() string
	Decide(in Input, rng Rand) Result
}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicySoft:
		return SoftThresholdPolicy{}, nil
	case PolicyThreshold:
		return ThresholdPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown decision policy %q", name)
	}
}

// ThresholdPolicy fires iff intent >= 60 and friction - clarity >= 20 with
// no hard blocker. It ignores rng.
type ThresholdPolicy struct{}

func (ThresholdPolicy) Name() string { return PolicyThreshold }

func (ThresholdPolicy) Decide(in Input, _ Rand) Result {
	res := Result{Type: in.Type}
	switch {
	case in.Dismissed:
		res.Reason = ReasonDismissed
	case in.InPayment:
		res.Reason = ReasonInPayment
	case in.Scores.Intent < IntentThreshold:
		res.Reason = ReasonLowIntent
	case in.Scores.Friction-in.Scores.Clarity < HelpNeedThreshold:
		res.Reason = ReasonLowHelpNeed
	default:
		res.Fire = true
		res.Probability = 1
		res.Reason = ReasonFire
	}
	return res
}

// SoftThresholdPolicy fires with the probability from
// CalculateInterventionProbability, drawn against rng. A nil rng never fires.
type SoftThresholdPolicy struct{}

func (SoftThresholdPolicy) Name() string { return PolicySoft }

func (SoftThresholdPolicy) Decide(in Input, rng Rand) Result {
	p := CalculateInterventionProbability(in.Scores, in.SessionAge)
	res := Result{Type: in.Type, Probability: p}

	switch {
	case in.Dismissed:
		res.Reason = ReasonDismissed
		return res
	case in.InPayment:
		res.Reason = ReasonInPayment
		return res
	case p == 0:
		res.Reason = ReasonFarBelow
		return res
	case rng == nil:
		res.Reason = ReasonNoRandSource
		return res
	}

	if rng.Float64() < p {
		res.Fire = true
		res.Reason = ReasonFire
	} else {
		res.Reason = ReasonDrawMissed
	}
	return res
}

// Margins returns the intent and help-need margins against their thresholds.
func Margins(s scoring.Dimensions) (intent, helpNeed float64) {
	return s.Intent - IntentThreshold, (s.Friction - s.Clarity) - HelpNeedThreshold
}

// CalculateInterventionProbability maps scores and session age to a firing
// probability in [0, 0.95]. It is exactly 0 when both margins are more than
// SoftRange below their thresholds.
func CalculateInterventionProbability(s scoring.Dimensions, age time.Duration) float64 {
	intentMargin, helpMargin := Margins(s)
	if math.IsNaN(intentMargin) || math.IsNaN(helpMargin) {
		return 0
	}
	if intentMargin < -SoftRange && helpMargin < -SoftRange {
		return 0
	}

	combined := math.Sqrt(sigmoid(intentMargin) * sigmoid(helpMargin))
	p := MinProbability + combined*(MaxProbability-MinProbability)
	p *= ReliabilityRamp(age)

	if p < 0 {
		return 0
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}

// ReliabilityRamp damps decisions on young sessions.
func ReliabilityRamp(age time.Duration) float64 {
	switch {
	case age < 30*time.Second:
		return 0.3
	case age < 60*time.Second:
		return 0.6
	case age < 120*time.Second:
		return 0.85
	default:
		return 1.0
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x/(SoftRange/3)))
}
