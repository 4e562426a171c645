package event

import (
	"math"
	"strconv"
	"time"
)

// Storefront event types understood by the detectors and trackers.
// Anything else is accepted and simply ignored downstream.
const (
	PageView         = "page_view"
	ProductView      = "product_view"
	SizeChartOpen    = "size_chart_open"
	PriceHover       = "price_hover"
	SortChange       = "sort_change"
	FilterApply      = "filter_apply"
	FilterRemove     = "filter_remove"
	Search           = "search"
	Scroll           = "scroll"
	AddToCart        = "add_to_cart"
	RemoveFromCart   = "remove_from_cart"
	CartOpen         = "cart_open"
	CheckoutStart    = "checkout_start"
	ShippingView     = "shipping_view"
	PaymentView      = "payment_view"
	CheckoutIdle     = "checkout_idle"
	ExitIntent       = "exit_intent"
	CompareAdd       = "compare_add"
	Dismissed        = "intervention_dismissed"
	PaymentStepEnter = "payment_step_enter"
	PaymentStepExit  = "payment_step_exit"
)

// Event is a single behavioral event from a storefront session.
// Events are immutable once received.
type Event struct {
	SessionID string         `json:"session_id"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// String returns the payload value for key if it is a non-empty string.
func (e Event) String(key string) (string, bool) {
	v, ok := e.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// StringOr returns the payload string for key or def when absent.
func (e Event) StringOr(key, def string) string {
	if s, ok := e.String(key); ok {
		return s
	}
	return def
}

// Float returns the payload value for key as a float64. Numbers arrive as
// float64 from JSON, but ints and numeric strings are tolerated. NaN and
// infinities are rejected.
func (e Event) Float(key string) (float64, bool) {
	v, ok := e.Payload[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns the payload value for key truncated to an int.
func (e Event) Int(key string) (int, bool) {
	f, ok := e.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
