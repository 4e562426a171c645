package scoring

import (
	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/friction"
)

// frictionDeltas are the base deltas applied when a friction type is
// detected. Most touch three dimensions; checkout and exit touch all five.
var frictionDeltas = map[friction.Type]Dimensions{
	friction.ExitIntent:          {Intent: 10, Friction: 25, Clarity: -20, Receptivity: 10, Value: 5},
	friction.SearchFrustration:   {Friction: 20, Clarity: -25, Receptivity: 10},
	friction.SortCycling:         {Friction: 10, Clarity: -15, Receptivity: 5},
	friction.FilterChurn:         {Friction: 12, Clarity: -18, Receptivity: 5},
	friction.SizeUncertainty:     {Intent: 8, Friction: 12, Clarity: -15},
	friction.PriceSensitivity:    {Intent: 6, Friction: 15, Value: -10},
	friction.CheckoutHesitation:  {Intent: 15, Friction: 25, Clarity: -20, Receptivity: 10, Value: 5},
	friction.ComparisonParalysis: {Intent: 10, Friction: 15, Clarity: -20},
	friction.BrowsingLost:        {Friction: 8, Clarity: -15, Receptivity: 8},
}

// engagementDeltas are positive or negative signals that are not friction
// but still move the scores, keyed by event type.
var engagementDeltas = map[string]Dimensions{
	event.ProductView:    {Intent: 6, Value: 2},
	event.CompareAdd:     {Intent: 5, Value: 3},
	event.AddToCart:      {Intent: 20, Value: 10, Receptivity: 5},
	event.RemoveFromCart: {Intent: -10, Value: -5},
	event.CheckoutStart:  {Intent: 25, Value: 5},
}

// FrictionDelta returns the base delta for a friction type.
func FrictionDelta(t friction.Type) (Dimensions, bool) {
	d, ok := frictionDeltas[t]
	return d, ok
}

// EngagementDelta returns the base delta for an engagement event type.
func EngagementDelta(eventType string) (Dimensions, bool) {
	d, ok := engagementDeltas[eventType]
	return d, ok
}

// FrictionKey is the scenario key used for a detection: the friction type
// plus its primary evidence tag, so distinct evidence for the same type is
// damped independently.
func FrictionKey(d friction.Detection) string {
	if ev := d.PrimaryEvidence(); ev != "" {
		return string(d.Type) + ":" + ev
	}
	return string(d.Type)
}

// EngagementKey is the scenario key for an engagement event type.
func EngagementKey(eventType string) string {
	return "engagement:" + eventType
}
