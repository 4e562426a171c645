package gate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/shop"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fire(g *Gatekeeper, l *Ledger, typ friction.Type, c shop.Counters, at time.Time) bool {
	ok, _, err := g.CanFire(l, typ, c, at)
	if err != nil {
		panic(err)
	}
	if ok {
		l.Append(typ, at, "msg")
	}
	return ok
}

func TestCanFireUnknownType(t *testing.T) {
	g := NewGatekeeper(nil)
	ok, _, err := g.CanFire(&Ledger{}, friction.Type("bogus"), shop.Counters{}, t0)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestCanFireLazyStart(t *testing.T) {
	g := NewGatekeeper(nil)
	l := &Ledger{}
	_, _, err := g.CanFire(l, friction.SortCycling, shop.Counters{}, t0)
	require.NoError(t, err)
	assert.Equal(t, t0, l.StartedAt)

	_, _, err = g.CanFire(l, friction.SortCycling, shop.Counters{}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0, l.StartedAt, "start is fixed on first reference")
}

func TestMinimumSessionAge(t *testing.T) {
	g := NewGatekeeper(nil)
	l := &Ledger{StartedAt: t0}

	ok, reason, err := g.CanFire(l, friction.ExitIntent, shop.Counters{}, t0.Add(119*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonTooYoung, reason)

	ok, _, err = g.CanFire(l, friction.ExitIntent, shop.Counters{}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// No minimum on checkout hesitation.
	young := &Ledger{}
	ok, _, err = g.CanFire(young, friction.CheckoutHesitation, shop.Counters{}, t0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSecondaryGates(t *testing.T) {
	g := NewGatekeeper(nil)

	ok, reason, _ := g.CanFire(&Ledger{}, friction.PriceSensitivity, shop.Counters{PriceHovers: 2}, t0)
	assert.False(t, ok)
	assert.Equal(t, "price_hovers_below_minimum", reason)

	ok, _, _ = g.CanFire(&Ledger{}, friction.PriceSensitivity, shop.Counters{PriceHovers: 3}, t0)
	assert.True(t, ok)

	ok, reason, _ = g.CanFire(&Ledger{}, friction.BrowsingLost, shop.Counters{Scrolls: 9, DistinctProducts: 5}, t0)
	assert.False(t, ok)
	assert.Equal(t, "scrolls_below_minimum", reason)

	ok, reason, _ = g.CanFire(&Ledger{}, friction.BrowsingLost, shop.Counters{Scrolls: 12, DistinctProducts: 2}, t0)
	assert.False(t, ok)
	assert.Equal(t, "products_viewed_below_minimum", reason)

	ok, _, _ = g.CanFire(&Ledger{}, friction.BrowsingLost, shop.Counters{Scrolls: 10, DistinctProducts: 3}, t0)
	assert.True(t, ok)
}

func TestFiniteCooldownExclusion(t *testing.T) {
	g := NewGatekeeper(nil)
	rule, _ := g.Rule(friction.SearchFrustration)
	l := &Ledger{}

	require.True(t, fire(g, l, friction.SearchFrustration, shop.Counters{}, t0))

	// Any check strictly inside the window is denied.
	for _, dt := range []time.Duration{0, time.Second, rule.Cooldown / 2, rule.Cooldown - time.Millisecond} {
		ok, reason, err := g.CanFire(l, friction.SearchFrustration, shop.Counters{}, t0.Add(dt))
		require.NoError(t, err)
		assert.False(t, ok, "at +%s", dt)
		assert.Equal(t, ReasonCooldown, reason)
	}

	assert.True(t, fire(g, l, friction.SearchFrustration, shop.Counters{}, t0.Add(rule.Cooldown)))
}

func TestForeverCooldownFiresOnce(t *testing.T) {
	g := NewGatekeeper(nil)
	l := &Ledger{StartedAt: t0}
	start := t0.Add(3 * time.Minute)

	fired := 0
	for i := 0; i < 20; i++ {
		if fire(g, l, friction.ExitIntent, shop.Counters{}, start.Add(time.Duration(i)*time.Hour)) {
			fired++
		}
	}
	assert.Equal(t, 1, fired)

	_, reason, _ := g.CanFire(l, friction.ExitIntent, shop.Counters{}, start.Add(48*time.Hour))
	assert.Equal(t, ReasonFiredOnce, reason)
}

func TestOccurrenceCap(t *testing.T) {
	g := NewGatekeeper(nil)
	l := &Ledger{}
	at := t0
	for i := 0; i < 2; i++ {
		require.True(t, fire(g, l, friction.SortCycling, shop.Counters{}, at))
		at = at.Add(10 * time.Minute)
	}
	ok, reason, _ := g.CanFire(l, friction.SortCycling, shop.Counters{}, at)
	assert.False(t, ok)
	assert.Equal(t, ReasonCapReached, reason)
}

func TestCooldownIsPerType(t *testing.T) {
	g := NewGatekeeper(nil)
	l := &Ledger{}
	require.True(t, fire(g, l, friction.SortCycling, shop.Counters{}, t0))
	assert.True(t, fire(g, l, friction.FilterChurn, shop.Counters{}, t0))
}

func TestStageProgression(t *testing.T) {
	g := NewGatekeeper(nil)
	l := &Ledger{}
	assert.Equal(t, 1, g.Stage(l, friction.CheckoutHesitation))
	l.Append(friction.CheckoutHesitation, t0, "a")
	assert.Equal(t, 2, g.Stage(l, friction.CheckoutHesitation))
	l.Append(friction.CheckoutHesitation, t0, "b")
	l.Append(friction.CheckoutHesitation, t0, "c")
	l.Append(friction.CheckoutHesitation, t0, "d")
	assert.Equal(t, 3, g.Stage(l, friction.CheckoutHesitation), "clamped to stage count")

	l.Append(friction.SizeUncertainty, t0, "x")
	assert.Equal(t, 1, g.Stage(l, friction.SizeUncertainty))
}

func TestByPriority(t *testing.T) {
	g := NewGatekeeper(nil)
	got := g.ByPriority([]friction.Type{
		friction.SortCycling,
		friction.ExitIntent,
		friction.FilterChurn,
		friction.SearchFrustration,
	})
	assert.Equal(t, []friction.Type{
		friction.ExitIntent,
		friction.SearchFrustration,
		friction.SortCycling,
		friction.FilterChurn,
	}, got)
}

func TestDefaultRulesCoverAllTypes(t *testing.T) {
	rules := DefaultRules()
	for _, ft := range friction.AllTypes {
		r, ok := rules[ft]
		require.True(t, ok, "rule for %s", ft)
		assert.GreaterOrEqual(t, r.Stages, 1)
		assert.LessOrEqual(t, r.Stages, 3)
		assert.Positive(t, r.MaxFirings)
	}
}
