package friction

import (
	"sort"
	"time"
)

// Type identifies a friction pattern. Intervention types share these names.
type Type string

const (
	ExitIntent          Type = "exit_intent"
	SearchFrustration   Type = "search_frustration"
	SortCycling         Type = "sort_cycling"
	FilterChurn         Type = "filter_churn"
	SizeUncertainty     Type = "size_uncertainty"
	PriceSensitivity    Type = "price_sensitivity"
	CheckoutHesitation  Type = "checkout_hesitation"
	ComparisonParalysis Type = "comparison_paralysis"
	BrowsingLost        Type = "browsing_lost"
)

// AllTypes lists every friction type the detectors can emit.
var AllTypes = []Type{
	ExitIntent,
	SearchFrustration,
	SortCycling,
	FilterChurn,
	SizeUncertainty,
	PriceSensitivity,
	CheckoutHesitation,
	ComparisonParalysis,
	BrowsingLost,
}

// Known reports whether t is one of AllTypes.
func Known(t Type) bool {
	for _, k := range AllTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Evidence tags.
const (
	EvidenceMouseExit         = "mouse_exit"
	EvidenceCartAtRisk        = "cart_at_risk"
	EvidenceZeroResultsStreak = "zero_results_streak"
	EvidenceReformulation     = "query_reformulation"
	EvidenceSortCycling       = "sort_cycling"
	EvidenceFilterChurn       = "filter_churn"
	EvidenceEarlySizeCheck    = "early_size_check"
	EvidenceSizeChart         = "size_chart"
	EvidencePriceHoverRepeat  = "price_hover_repeat"
	EvidenceCheckoutIdle      = "checkout_idle"
	EvidenceShippingRecheck   = "shipping_recheck"
	EvidencePaymentRecheck    = "payment_recheck"
	EvidenceCartRevisit       = "cart_revisit"
	EvidenceRevisitCompared   = "revisit_compared"
	EvidenceAimlessScroll     = "aimless_scroll"
)

// Detection is one typed friction signal produced for an event.
type Detection struct {
	Type       Type           `json:"type"`
	Confidence float64        `json:"confidence"`
	Evidence   []string       `json:"evidence"`
	Timestamp  time.Time      `json:"timestamp"`
	Context    map[string]any `json:"context,omitempty"`
}

// HasEvidence reports whether tag is among the detection's evidence.
func (d Detection) HasEvidence(tag string) bool {
	for _, e := range d.Evidence {
		if e == tag {
			return true
		}
	}
	return false
}

// PrimaryEvidence returns the first evidence tag in sorted order, or "".
func (d Detection) PrimaryEvidence() string {
	if len(d.Evidence) == 0 {
		return ""
	}
	return d.Evidence[0]
}

// evidence returns tags sorted and de-duplicated.
func evidence(tags ...string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
