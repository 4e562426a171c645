package scoring

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/nudge/internal/friction"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecayHalvesEveryHalfLife(t *testing.T) {
	s := NewState(t0)
	s.Apply("exit", Dimensions{Friction: 40}, 1.0, t0)

	at := s.Current(t0, 0)
	assert.InDelta(t, 40, at.Friction, 1e-9)

	later := s.Current(t0.Add(120*time.Second), 0)
	assert.InDelta(t, 20, later.Friction, 1e-9)

	muchLater := s.Current(t0.Add(240*time.Second), 0)
	assert.InDelta(t, 10, muchLater.Friction, 1e-9)
}

func TestDecayStrictlyDecreasing(t *testing.T) {
	prev := Decay(0)
	for ms := 1; ms < 20*60*1000; ms += 997 {
		cur := Decay(time.Duration(ms) * time.Millisecond)
		require.Less(t, cur, prev, "decay at %dms", ms)
		prev = cur
	}
	assert.Equal(t, 1.0, Decay(-time.Second))
	assert.InDelta(t, 0.5, Decay(HalfLife), 1e-12)
}

func TestDiminishingReturns(t *testing.T) {
	s := NewState(t0)
	var got []float64
	for i := 0; i < 3; i++ {
		c := s.Apply("search_frustration:zero_results_streak", Dimensions{Friction: 10}, 1.0, t0)
		got = append(got, c.Delta.Friction)
	}
	assert.InDelta(t, 10, got[0], 1e-9)
	assert.InDelta(t, 7, got[1], 1e-9)
	assert.InDelta(t, 4.9, got[2], 1e-9)
	assert.InDelta(t, 21.9, s.Current(t0, 0).Friction, 1e-9)
	assert.Equal(t, []int{0, 1, 2}, []int{s.Contributions[0].Occurrence, s.Contributions[1].Occurrence, s.Contributions[2].Occurrence})
}

func TestDiminishingCapsAtMaxTracked(t *testing.T) {
	s := NewState(t0)
	var deltas []float64
	for i := 0; i < 9; i++ {
		c := s.Apply("k", Dimensions{Friction: 10}, 1.0, t0)
		deltas = append(deltas, c.Delta.Friction)
	}
	for i := 1; i < len(deltas); i++ {
		assert.LessOrEqual(t, deltas[i], deltas[i-1], "occurrence %d", i)
	}
	floor := 10 * math.Pow(DiminishingFactor, MaxTrackedOccurrences)
	for i := MaxTrackedOccurrences; i < len(deltas); i++ {
		assert.InDelta(t, floor, deltas[i], 1e-9, "occurrence %d stays at floor", i)
	}
	assert.Equal(t, 9, s.Occurrences["k"])
}

func TestKeysAreDampedIndependently(t *testing.T) {
	s := NewState(t0)
	s.Apply("a", Dimensions{Intent: 10}, 1.0, t0)
	c := s.Apply("b", Dimensions{Intent: 10}, 1.0, t0)
	assert.Equal(t, 0, c.Occurrence)
	assert.InDelta(t, 10, c.Delta.Intent, 1e-9)
}

func TestConfidenceWeighting(t *testing.T) {
	s := NewState(t0)
	c := s.Apply("k", Dimensions{Friction: 20, Clarity: -10}, 0.5, t0)
	assert.InDelta(t, 10, c.Delta.Friction, 1e-9)
	assert.InDelta(t, -5, c.Delta.Clarity, 1e-9)

	c = s.Apply("j", Dimensions{Friction: 20}, 3, t0)
	assert.Equal(t, 1.0, c.Confidence, "confidence clamped to 1")
	c = s.Apply("n", Dimensions{Friction: 20}, math.NaN(), t0)
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, 0.0, c.Delta.Friction)
}

func TestClarityBaseline(t *testing.T) {
	s := NewState(t0)
	got := s.Current(t0, DefaultClarityBaseline)
	assert.Equal(t, Dimensions{Clarity: 100}, got)

	s.Apply("k", Dimensions{Clarity: -30}, 1.0, t0)
	assert.InDelta(t, 70, s.Current(t0, DefaultClarityBaseline).Clarity, 1e-9)
	assert.InDelta(t, 85, s.Current(t0.Add(HalfLife), DefaultClarityBaseline).Clarity, 1e-9)
}

func TestScoresAlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	s := NewState(t0)
	for i := 0; i < 500; i++ {
		delta := Dimensions{
			Intent:      rng.Float64()*400 - 200,
			Friction:    rng.Float64()*400 - 200,
			Clarity:     rng.Float64()*400 - 200,
			Receptivity: rng.Float64()*400 - 200,
			Value:       rng.Float64()*400 - 200,
		}
		at := t0.Add(time.Duration(rng.IntN(600)) * time.Second)
		s.Apply(string(rune('a'+rng.IntN(5))), delta, rng.Float64(), at)

		now := t0.Add(time.Duration(rng.IntN(900)) * time.Second)
		got := s.Current(now, DefaultClarityBaseline)
		for _, dim := range AllDimensions {
			v := got.Get(dim)
			require.GreaterOrEqual(t, v, 0.0, "%s at step %d", dim, i)
			require.LessOrEqual(t, v, 100.0, "%s at step %d", dim, i)
		}
	}
}

func TestNaNDeltaIsIgnored(t *testing.T) {
	s := NewState(t0)
	s.Apply("k", Dimensions{Friction: math.NaN(), Intent: math.Inf(1)}, 1, t0)
	s.Apply("j", Dimensions{Friction: 10}, 1, t0)
	got := s.Current(t0, 0)
	assert.InDelta(t, 10, got.Friction, 1e-9)
	assert.Equal(t, 0.0, got.Intent)
}

func TestBreakdownSplitsActiveAndDecayed(t *testing.T) {
	s := NewState(t0)
	s.Apply("old", Dimensions{Friction: 40}, 1, t0)
	s.Apply("new", Dimensions{Friction: 10}, 1, t0.Add(20*time.Minute))

	b := s.Breakdown(t0.Add(21*time.Minute), DefaultClarityBaseline, 0)
	require.Len(t, b.Active, 1)
	require.Len(t, b.Decayed, 1)
	assert.Equal(t, "new", b.Active[0].Key)
	assert.Equal(t, "old", b.Decayed[0].Key)
	assert.InDelta(t, 10*Decay(time.Minute), b.ByKey["new"].Friction, 1e-9)
	assert.NotContains(t, b.ByKey, "old")
	assert.Equal(t, int64(60000), b.Active[0].AgeMs)
	assert.Equal(t, s.Current(t0.Add(21*time.Minute), DefaultClarityBaseline), b.Scores)
}

func TestAgeAndLazyStart(t *testing.T) {
	var s State
	assert.Equal(t, time.Duration(0), s.Age(t0))
	s.Apply("k", Dimensions{Intent: 1}, 1, t0)
	assert.Equal(t, t0, s.StartedAt)
	assert.Equal(t, 90*time.Second, s.Age(t0.Add(90*time.Second)))
	assert.Equal(t, time.Duration(0), s.Age(t0.Add(-time.Second)))
}

func TestScenarioTables(t *testing.T) {
	for _, ft := range friction.AllTypes {
		d, ok := FrictionDelta(ft)
		require.True(t, ok, "friction delta for %s", ft)
		assert.Greater(t, d.Friction, 0.0, "%s raises friction", ft)
	}
	_, ok := EngagementDelta("page_view")
	assert.False(t, ok)

	key := FrictionKey(friction.Detection{Type: friction.ExitIntent, Evidence: []string{"cart_at_risk", "mouse_exit"}})
	assert.Equal(t, "exit_intent:cart_at_risk", key)
	assert.Equal(t, "engagement:add_to_cart", EngagementKey("add_to_cart"))
}
