package friction

import (
	"time"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/shop"
)

// Detector thresholds.
const (
	searchWindow          = 5
	zeroResultStreak      = 2
	reformulationSearches = 3
	sortWindow            = 10
	distinctSorts         = 3
	filterChurnCycles     = 2
	sizeChartWindow       = 3 * time.Second
	priorPriceHovers      = 2
	checkoutIdleMin       = 30 * time.Second
	maxReportedIdle       = 24 * time.Hour
	priorCartOpens        = 2
	comparisonSetMin      = 3
	aimlessScrolls        = 8
)

// window returns the last n-1 history entries followed by ev.
func window(ev event.Event, history []event.Event, n int) []event.Event {
	start := len(history) - (n - 1)
	if start < 0 {
		start = 0
	}
	out := make([]event.Event, 0, n)
	out = append(out, history[start:]...)
	return append(out, ev)
}

func countType(events []event.Event, eventType string) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func detectExitIntent(ev event.Event, _ []event.Event, snap shop.Snapshot) (Detection, bool) {
	d := Detection{
		Type:       ExitIntent,
		Confidence: 0.85,
		Evidence:   evidence(EvidenceMouseExit),
		Context:    map[string]any{"cart_items": 0},
	}
	if !snap.Cart.Empty() {
		d.Confidence = 0.9
		d.Evidence = evidence(EvidenceMouseExit, EvidenceCartAtRisk)
		d.Context["cart_items"] = len(snap.Cart.Items)
		d.Context["cart_total"] = snap.Cart.Total()
	}
	return d, true
}

func detectSearchFrustration(ev event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	recent := window(ev, history, searchWindow)
	query := ev.StringOr("query", "")

	if rc, ok := ev.Int("result_count"); ok && rc == 0 {
		zero := 0
		for _, e := range recent {
			if e.Type != event.Search {
				continue
			}
			if n, ok := e.Int("result_count"); ok && n == 0 {
				zero++
			}
		}
		if zero >= zeroResultStreak {
			return Detection{
				Type:       SearchFrustration,
				Confidence: 0.8,
				Evidence:   evidence(EvidenceZeroResultsStreak),
				Context:    map[string]any{"query": query, "zero_results": zero},
			}, true
		}
	}

	if searches := countType(recent, event.Search); searches >= reformulationSearches {
		return Detection{
			Type:       SearchFrustration,
			Confidence: 0.6,
			Evidence:   evidence(EvidenceReformulation),
			Context:    map[string]any{"query": query, "searches": searches},
		}, true
	}
	return Detection{}, false
}

func detectSortCycling(ev event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	sorts := make(map[string]bool)
	for _, e := range window(ev, history, sortWindow) {
		if e.Type != event.SortChange {
			continue
		}
		if key, ok := e.String("sort_by"); ok {
			sorts[key] = true
		}
	}
	if len(sorts) < distinctSorts {
		return Detection{}, false
	}
	return Detection{
		Type:       SortCycling,
		Confidence: 0.6,
		Evidence:   evidence(EvidenceSortCycling),
		Context:    map[string]any{"distinct_sorts": len(sorts)},
	}, true
}

func detectFilterChurn(ev event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	filter, ok := ev.String("filter")
	if !ok {
		return Detection{}, false
	}
	applied, removed := 0, 1 // current event is a removal
	for _, e := range history {
		if f, ok := e.String("filter"); !ok || f != filter {
			continue
		}
		switch e.Type {
		case event.FilterApply:
			applied++
		case event.FilterRemove:
			removed++
		}
	}
	cycles := min(applied, removed)
	if cycles < filterChurnCycles {
		return Detection{}, false
	}
	return Detection{
		Type:       FilterChurn,
		Confidence: 0.65,
		Evidence:   evidence(EvidenceFilterChurn),
		Context:    map[string]any{"filter": filter, "cycles": cycles},
	}, true
}

func detectSizeUncertainty(ev event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	d := Detection{
		Type:       SizeUncertainty,
		Confidence: 0.5,
		Evidence:   evidence(EvidenceSizeChart),
		Context:    map[string]any{"product_id": ev.StringOr("product_id", "")},
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type != event.ProductView {
			continue
		}
		gap := ev.Timestamp.Sub(history[i].Timestamp)
		if gap >= 0 && gap <= sizeChartWindow {
			d.Confidence = 0.7
			d.Evidence = evidence(EvidenceEarlySizeCheck)
			d.Context["ms_since_view"] = gap.Milliseconds()
		}
		break
	}
	return d, true
}

func detectPriceSensitivity(ev event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	prior := countType(history, event.PriceHover)
	if prior < priorPriceHovers {
		return Detection{}, false
	}
	return Detection{
		Type:       PriceSensitivity,
		Confidence: 0.7,
		Evidence:   evidence(EvidencePriceHoverRepeat),
		Context:    map[string]any{"product_id": ev.StringOr("product_id", ""), "hovers": prior + 1},
	}, true
}

func detectCheckoutHesitation(ev event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	d := Detection{Type: CheckoutHesitation, Context: map[string]any{}}
	switch ev.Type {
	case event.CheckoutIdle:
		idle, ok := ev.Float("idle_ms")
		if !ok || idle < float64(checkoutIdleMin.Milliseconds()) {
			return Detection{}, false
		}
		d.Confidence = 0.75
		d.Evidence = evidence(EvidenceCheckoutIdle)
		d.Context["idle_ms"] = int64(min(idle, float64(maxReportedIdle.Milliseconds())))
	case event.ShippingView:
		prior := countType(history, event.ShippingView)
		if prior < 1 {
			return Detection{}, false
		}
		d.Confidence = 0.7
		d.Evidence = evidence(EvidenceShippingRecheck)
		d.Context["shipping_views"] = prior + 1
	case event.PaymentView:
		prior := countType(history, event.PaymentView)
		if prior < 1 {
			return Detection{}, false
		}
		d.Confidence = 0.7
		d.Evidence = evidence(EvidencePaymentRecheck)
		d.Context["payment_views"] = prior + 1
	case event.CartOpen:
		prior := countType(history, event.CartOpen)
		if prior < priorCartOpens || countType(history, event.CheckoutStart) > 0 {
			return Detection{}, false
		}
		d.Confidence = 0.6
		d.Evidence = evidence(EvidenceCartRevisit)
		d.Context["cart_opens"] = prior + 1
	default:
		return Detection{}, false
	}
	return d, true
}

func detectComparisonParalysis(ev event.Event, _ []event.Event, snap shop.Snapshot) (Detection, bool) {
	id, ok := ev.String("product_id")
	if !ok || snap.Comparison.Size() < comparisonSetMin {
		return Detection{}, false
	}
	p, ok := snap.Comparison.Products[id]
	if !ok || p.ViewCount < 2 {
		return Detection{}, false
	}
	return Detection{
		Type:       ComparisonParalysis,
		Confidence: 0.75,
		Evidence:   evidence(EvidenceRevisitCompared),
		Context:    map[string]any{"product_id": id, "compared": snap.Comparison.Size()},
	}, true
}

func detectBrowsingLost(_ event.Event, history []event.Event, _ shop.Snapshot) (Detection, bool) {
	scrolls := countType(history, event.Scroll)
	if scrolls < aimlessScrolls || countType(history, event.AddToCart) > 0 {
		return Detection{}, false
	}
	return Detection{
		Type:       BrowsingLost,
		Confidence: 0.55,
		Evidence:   evidence(EvidenceAimlessScroll),
		Context:    map[string]any{"scrolls": scrolls + 1},
	}, true
}
