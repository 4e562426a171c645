package gate

import (
	"sort"
	"time"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/shop"
)

// Forever marks a rule whose intervention may fire at most once per session.
const Forever time.Duration = -1

// Rule holds the firing constraints for one intervention type.
type Rule struct {
	// Cooldown is the minimum gap between two firings, or Forever.
	Cooldown      time.Duration
	MinSessionAge time.Duration
	// MaxFirings caps lifetime firings per session; zero means uncapped.
	MaxFirings int
	Priority   int
	// Stages is the length of the escalation progression (1-3).
	Stages int
	// Gate is an optional precondition on session counters. It returns a
	// reason when it denies.
	Gate func(c shop.Counters) (bool, string)
}

// Secondary gate thresholds.
const (
	MinPriceHovers       = 3
	MinScrollsForAssist  = 10
	MinProductsForAssist = 3
)

func priceHoverGate(c shop.Counters) (bool, string) {
	if c.PriceHovers < MinPriceHovers {
		return false, "price_hovers_below_minimum"
	}
	return true, ""
}

func searchAssistGate(c shop.Counters) (bool, string) {
	if c.Scrolls < MinScrollsForAssist {
		return false, "scrolls_below_minimum"
	}
	if c.DistinctProducts < MinProductsForAssist {
		return false, "products_viewed_below_minimum"
	}
	return true, ""
}

// DefaultRules returns the built-in rule table.
func DefaultRules() map[friction.Type]Rule {
	return map[friction.Type]Rule{
		friction.ExitIntent:          {Cooldown: Forever, MinSessionAge: 2 * time.Minute, MaxFirings: 1, Priority: 100, Stages: 1},
		friction.CheckoutHesitation:  {Cooldown: 3 * time.Minute, MaxFirings: 3, Priority: 90, Stages: 3},
		friction.SearchFrustration:   {Cooldown: 90 * time.Second, MaxFirings: 2, Priority: 70, Stages: 2},
		friction.ComparisonParalysis: {Cooldown: 2 * time.Minute, MaxFirings: 2, Priority: 60, Stages: 2},
		friction.PriceSensitivity:    {Cooldown: 5 * time.Minute, MaxFirings: 3, Priority: 55, Stages: 3, Gate: priceHoverGate},
		friction.SizeUncertainty:     {Cooldown: 2 * time.Minute, MaxFirings: 2, Priority: 50, Stages: 1},
		friction.BrowsingLost:        {Cooldown: 5 * time.Minute, MaxFirings: 1, Priority: 40, Stages: 2, Gate: searchAssistGate},
		friction.SortCycling:         {Cooldown: 2 * time.Minute, MaxFirings: 2, Priority: 30, Stages: 1},
		friction.FilterChurn:         {Cooldown: 2 * time.Minute, MaxFirings: 2, Priority: 30, Stages: 1},
	}
}

// ByPriority orders types highest priority first. Unknown types sort last;
// ties keep the input order.
func (g *Gatekeeper) ByPriority(types []friction.Type) []friction.Type {
	out := append([]friction.Type(nil), types...)
	sort.SliceStable(out, func(i, j int) bool {
		return g.rules[out[i]].Priority > g.rules[out[j]].Priority
	})
	return out
}
