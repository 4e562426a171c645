package scoring

import "math"

// Dimension names one orthogonal behavioral score.
type Dimension string

const (
	Intent      Dimension = "intent"
	Friction    Dimension = "friction"
	Clarity     Dimension = "clarity"
	Receptivity Dimension = "receptivity"
	Value       Dimension = "value"
)

// AllDimensions lists the dimensions in display order.
var AllDimensions = []Dimension{Intent, Friction, Clarity, Receptivity, Value}

// Dimensions holds one signed value per dimension. It is used both for
// per-contribution deltas and for current scores.
type Dimensions struct {
	Intent      float64 `json:"intent"`
	Friction    float64 `json:"friction"`
	Clarity     float64 `json:"clarity"`
	Receptivity float64 `json:"receptivity"`
	Value       float64 `json:"value"`
}

// Get returns the value of a single dimension.
func (d Dimensions) Get(dim Dimension) float64 {
	switch dim {
	case Intent:
		return d.Intent
	case Friction:
		return d.Friction
	case Clarity:
		return d.Clarity
	case Receptivity:
		return d.Receptivity
	case Value:
		return d.Value
	}
	return 0
}

// Scale multiplies every dimension by f.
func (d Dimensions) Scale(f float64) Dimensions {
	return Dimensions{
		Intent:      d.Intent * f,
		Friction:    d.Friction * f,
		Clarity:     d.Clarity * f,
		Receptivity: d.Receptivity * f,
		Value:       d.Value * f,
	}
}

// Add returns the element-wise sum of d and o.
func (d Dimensions) Add(o Dimensions) Dimensions {
	return Dimensions{
		Intent:      d.Intent + o.Intent,
		Friction:    d.Friction + o.Friction,
		Clarity:     d.Clarity + o.Clarity,
		Receptivity: d.Receptivity + o.Receptivity,
		Value:       d.Value + o.Value,
	}
}

// Clamp limits every dimension to [0,100]. NaN becomes 0.
func (d Dimensions) Clamp() Dimensions {
	return Dimensions{
		Intent:      clamp100(d.Intent),
		Friction:    clamp100(d.Friction),
		Clarity:     clamp100(d.Clarity),
		Receptivity: clamp100(d.Receptivity),
		Value:       clamp100(d.Value),
	}
}

// IsZero reports whether every dimension is exactly zero.
func (d Dimensions) IsZero() bool {
	return d == Dimensions{}
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clampUnit limits v to [0,1]. NaN becomes 0.
func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
