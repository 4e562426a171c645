package friction

import (
	"sync"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/shop"
)

// Detector inspects one event together with the session's recent history
// (oldest first, current event excluded) and the tracker snapshot. It returns
// at most one detection.
type Detector func(ev event.Event, history []event.Event, snap shop.Snapshot) (Detection, bool)

// Registry maps event types to the ordered detectors that handle them.
type Registry struct {
	mu        sync.RWMutex
	detectors map[string][]Detector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[string][]Detector)}
}

// Register appends d to the detectors run for eventType.
func (r *Registry) Register(eventType string, d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[eventType] = append(r.detectors[eventType], d)
}

// Detect runs every detector registered for the event's type. Unknown event
// types yield nil. History longer than event.MaxHistory is trimmed to the
// most recent entries.
func (r *Registry) Detect(ev event.Event, history []event.Event, snap shop.Snapshot) []Detection {
	r.mu.RLock()
	ds := r.detectors[ev.Type]
	r.mu.RUnlock()
	if len(ds) == 0 {
		return nil
	}

	if over := len(history) - event.MaxHistory; over > 0 {
		history = history[over:]
	}

	var out []Detection
	for _, d := range ds {
		det, ok := d(ev, history, snap)
		if !ok {
			continue
		}
		if det.Timestamp.IsZero() {
			det.Timestamp = ev.Timestamp
		}
		det.Confidence = clampConfidence(det.Confidence)
		out = append(out, det)
	}
	return out
}

// EventTypes returns how many detectors are registered per event type.
func (r *Registry) EventTypes() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.detectors))
	for k, v := range r.detectors {
		out[k] = len(v)
	}
	return out
}

// Default returns a registry loaded with the built-in storefront detectors.
func Default() *Registry {
	r := NewRegistry()
	r.Register(event.ExitIntent, detectExitIntent)
	r.Register(event.Search, detectSearchFrustration)
	r.Register(event.SortChange, detectSortCycling)
	r.Register(event.FilterRemove, detectFilterChurn)
	r.Register(event.SizeChartOpen, detectSizeUncertainty)
	r.Register(event.PriceHover, detectPriceSensitivity)
	for _, t := range []string{event.CheckoutIdle, event.ShippingView, event.PaymentView, event.CartOpen} {
		r.Register(t, detectCheckoutHesitation)
	}
	r.Register(event.ProductView, detectComparisonParalysis)
	r.Register(event.CompareAdd, detectComparisonParalysis)
	r.Register(event.Scroll, detectBrowsingLost)
	return r
}

func clampConfidence(c float64) float64 {
	if c != c || c < 0 { // NaN
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
