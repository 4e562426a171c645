package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/shop"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestExitPrefersHighestValueCartItem(t *testing.T) {
	in := Inputs{
		Cart: &shop.Cart{Items: []shop.CartItem{
			{ProductID: "a", Name: "Socks", Price: 8, Quantity: 3},
			{ProductID: "b", Name: "Trail Runner", Price: 120, Quantity: 1, Stock: 2},
		}},
		Product: &shop.Product{ID: "c", Name: "Hat", ViewedAt: now},
	}
	c := Resolve(friction.ExitIntent, event.Event{}, in, now)
	assert.Equal(t, KindCart, c.Kind)
	require.NotNil(t, c.Product)
	assert.Equal(t, "Trail Runner", c.Product.Name)
	assert.Equal(t, 144.0, c.CartTotal)
	assert.Equal(t, 2, c.CartItems)
	assert.Equal(t, "$144.00", c.Fields()["cart_total"])
	assert.Equal(t, "2", c.Fields()["stock"])
	assert.Equal(t, "2 items", c.Fields()["cart_items"])
}

func TestExitFallsBackToRecentProduct(t *testing.T) {
	recent := Inputs{Product: &shop.Product{ID: "c", Name: "Hat", Price: 25, ViewedAt: now.Add(-59 * time.Second)}}
	c := Resolve(friction.ExitIntent, event.Event{}, recent, now)
	assert.Equal(t, KindProduct, c.Kind)
	assert.Equal(t, "Hat", c.Product.Name)

	stale := Inputs{Product: &shop.Product{ID: "c", Name: "Hat", ViewedAt: now.Add(-61 * time.Second)}}
	c = Resolve(friction.ExitIntent, event.Event{}, stale, now)
	assert.Equal(t, KindGeneric, c.Kind)

	c = Resolve(friction.ExitIntent, event.Event{}, Inputs{Cart: &shop.Cart{}}, now)
	assert.Equal(t, Generic(friction.ExitIntent), c)
}

func TestCheckoutExtrasByEvidence(t *testing.T) {
	cart := &shop.Cart{
		Items:      []shop.CartItem{{ProductID: "a", Name: "Lamp", Price: 40, Quantity: 1}},
		LastOpened: now.Add(-45 * time.Second),
	}

	tests := []struct {
		name string
		det  friction.Detection
		want map[string]any
	}{
		{
			name: "idle",
			det:  friction.Detection{Type: friction.CheckoutHesitation, Evidence: []string{friction.EvidenceCheckoutIdle}, Context: map[string]any{"idle_ms": int64(42_500)}},
			want: map[string]any{ExtraIdleSeconds: int64(42)},
		},
		{
			name: "shipping",
			det:  friction.Detection{Type: friction.CheckoutHesitation, Evidence: []string{friction.EvidenceShippingRecheck}, Context: map[string]any{"shipping_views": 2}},
			want: map[string]any{ExtraShippingViews: 2},
		},
		{
			name: "payment",
			det:  friction.Detection{Type: friction.CheckoutHesitation, Evidence: []string{friction.EvidencePaymentRecheck}, Context: map[string]any{"payment_views": 3}},
			want: map[string]any{ExtraPaymentViews: 3},
		},
		{
			name: "cart revisit",
			det:  friction.Detection{Type: friction.CheckoutHesitation, Evidence: []string{friction.EvidenceCartRevisit}, Context: map[string]any{"cart_opens": 3}},
			want: map[string]any{ExtraCartOpens: 3, ExtraSinceCartOpenSec: int64(45)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := tt.det
			c := Resolve(friction.CheckoutHesitation, event.Event{}, Inputs{Cart: cart, Detection: &det}, now)
			assert.Equal(t, KindCheckout, c.Kind)
			assert.Equal(t, 40.0, c.CartTotal)
			assert.Equal(t, tt.want, c.Extra)
			assert.Equal(t, det.PrimaryEvidence(), c.Evidence)
		})
	}
}

func TestCheckoutWithoutCartIsGeneric(t *testing.T) {
	det := friction.Detection{Evidence: []string{friction.EvidenceCheckoutIdle}, Context: map[string]any{"idle_ms": "bad"}}
	c := Resolve(friction.CheckoutHesitation, event.Event{}, Inputs{Detection: &det}, now)
	assert.Equal(t, KindGeneric, c.Kind)
	assert.Nil(t, c.Extra)
	assert.Equal(t, friction.EvidenceCheckoutIdle, c.Evidence)
}

func TestComparisonTopTwo(t *testing.T) {
	cmp := &shop.Comparison{Products: map[string]shop.ComparedProduct{
		"a": {ID: "a", Name: "Alpha", ViewCount: 2, LastViewed: now},
		"b": {ID: "b", Name: "Bravo", ViewCount: 5, LastViewed: now.Add(-time.Minute)},
		"c": {ID: "c", Name: "Charlie", ViewCount: 2, LastViewed: now.Add(-time.Second)},
		"d": {ID: "d", Name: "Delta", ViewCount: 1, LastViewed: now},
	}}
	c := Resolve(friction.ComparisonParalysis, event.Event{}, Inputs{Comparison: cmp}, now)
	assert.Equal(t, KindComparison, c.Kind)
	require.Len(t, c.Compared, 2)
	assert.Equal(t, "Bravo", c.Compared[0].Name)
	assert.Equal(t, "Alpha", c.Compared[1].Name)
	assert.Equal(t, "Bravo", c.Fields()["compare_a"])
	assert.Equal(t, "Alpha", c.Fields()["compare_b"])
}

func TestIndecisionWithoutComparisonUsesProduct(t *testing.T) {
	c := Resolve(friction.SortCycling, event.Event{}, Inputs{Product: &shop.Product{Name: "Kettle"}}, now)
	assert.Equal(t, KindProduct, c.Kind)

	c = Resolve(friction.FilterChurn, event.Event{}, Inputs{}, now)
	assert.Equal(t, KindGeneric, c.Kind)
}

func TestSearchContext(t *testing.T) {
	in := Inputs{Search: &shop.Search{Queries: []shop.Query{{Text: "nike running shoes", ResultCount: 12}}}}
	c := Resolve(friction.SearchFrustration, event.Event{}, in, now)
	assert.Equal(t, KindSearch, c.Kind)
	require.NotNil(t, c.Intent)
	assert.Equal(t, "shoes", c.Fields()["category"])
	assert.Equal(t, "nike", c.Fields()["brand"])

	c = Resolve(friction.BrowsingLost, event.Event{}, Inputs{Search: &shop.Search{}}, now)
	assert.Equal(t, KindGeneric, c.Kind)
}

func TestUnknownTypeIsGeneric(t *testing.T) {
	c := Resolve(friction.Type("mystery"), event.Event{}, Inputs{}, now)
	assert.Equal(t, KindGeneric, c.Kind)
	assert.Empty(t, c.Fields())
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"highend", "wireless", "headphones", "under", "200"}, Tokenize("High-End  wireless HEADPHONES, under $200"))
	assert.Empty(t, Tokenize("  ?! "))
}

func TestInferIntentClasses(t *testing.T) {
	q := func(texts ...string) []shop.Query {
		out := make([]shop.Query, len(texts))
		for i, s := range texts {
			out[i] = shop.Query{Text: s, ResultCount: 5}
		}
		return out
	}

	tests := []struct {
		name     string
		queries  []shop.Query
		class    IntentClass
		category string
		lean     PriceLean
	}{
		{"browsing", q("summer stuff"), IntentBrowsing, "", LeanNeutral},
		{"specific", q("nike pegasus size 11"), IntentSpecificProduct, "", LeanNeutral},
		{"specific with category", q("leather boots size 9"), IntentSpecificProduct, "shoes", LeanNeutral},
		{"comparison", q("sony vs bose headphones"), IntentComparison, "electronics", LeanNeutral},
		{"two brands", q("samsung phone", "apple phone"), IntentComparison, "electronics", LeanNeutral},
		{"research", q("how to choose a tent"), IntentResearch, "outdoor", LeanNeutral},
		{"budget", q("cheap sofa", "sofa on sale"), IntentBrowsing, "home", LeanBudget},
		{"premium", q("luxury perfume"), IntentBrowsing, "beauty", LeanPremium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferIntent(tt.queries)
			assert.Equal(t, tt.class, got.Class)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.lean, got.Lean)
		})
	}
}

func TestInferIntentConfidence(t *testing.T) {
	empty := InferIntent(nil)
	assert.Equal(t, IntentBrowsing, empty.Class)
	assert.Equal(t, 0.0, empty.Confidence)

	strong := InferIntent([]shop.Query{
		{Text: "nike shoes size 10", ResultCount: 4},
		{Text: "nike running shoes", ResultCount: 9},
		{Text: "nike trail shoes 10", ResultCount: 3},
		{Text: "nike shoes", ResultCount: 20},
		{Text: "nike shoes waterproof", ResultCount: 2},
	})
	assert.LessOrEqual(t, strong.Confidence, MaxIntentConfidence)
	assert.Greater(t, strong.Confidence, 0.7)

	zero := []shop.Query{
		{Text: "nike shoes size 10", ResultCount: 0},
		{Text: "nike running shoes", ResultCount: 0},
		{Text: "nike trail shoes 10", ResultCount: 0},
		{Text: "nike shoes", ResultCount: 0},
		{Text: "nike shoes waterproof", ResultCount: 0},
	}
	penalized := InferIntent(zero)
	assert.Equal(t, 5, penalized.ZeroResults)
	assert.Less(t, penalized.Confidence, strong.Confidence)
	assert.GreaterOrEqual(t, penalized.Confidence, 0.0)
	assert.Equal(t, "nike shoes waterproof", penalized.LastQuery)
}
