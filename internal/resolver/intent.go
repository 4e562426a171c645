package resolver

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lazypower/nudge/internal/shop"
)

// IntentClass is the shopper's inferred search mode.
type IntentClass string

const (
	IntentBrowsing        IntentClass = "browsing"
	IntentSpecificProduct IntentClass = "specific_product"
	IntentComparison      IntentClass = "comparison"
	IntentResearch        IntentClass = "research"
)

// PriceLean is the budget/premium reading of the queries.
type PriceLean string

const (
	LeanNeutral PriceLean = "neutral"
	LeanBudget  PriceLean = "budget"
	LeanPremium PriceLean = "premium"
)

// MaxIntentConfidence bounds InferIntent's confidence.
const MaxIntentConfidence = 0.95

// Intent is what the search history says the shopper wants.
type Intent struct {
	Class       IntentClass `json:"class"`
	Category    string      `json:"category,omitempty"`
	Brand       string      `json:"brand,omitempty"`
	Lean        PriceLean   `json:"lean"`
	Specific    bool        `json:"specific"`
	Confidence  float64     `json:"confidence"`
	Queries     int         `json:"queries"`
	ZeroResults int         `json:"zero_results"`
	LastQuery   string      `json:"last_query,omitempty"`
}

var categoryLexicon = map[string][]string{
	"shoes":       {"shoe", "shoes", "sneaker", "sneakers", "boot", "boots", "sandal", "sandals", "trainer", "trainers", "heels", "loafers"},
	"apparel":     {"shirt", "shirts", "tshirt", "tee", "dress", "dresses", "jeans", "pants", "jacket", "jackets", "hoodie", "sweater", "coat", "shorts", "skirt"},
	"electronics": {"laptop", "laptops", "phone", "phones", "headphones", "earbuds", "tablet", "camera", "monitor", "tv", "speaker", "charger", "keyboard"},
	"home":        {"sofa", "couch", "chair", "table", "lamp", "rug", "bedding", "pillow", "mattress", "curtains", "vacuum", "blender"},
	"beauty":      {"lipstick", "mascara", "serum", "moisturizer", "shampoo", "perfume", "skincare", "foundation", "sunscreen"},
	"outdoor":     {"tent", "backpack", "hiking", "camping", "sleeping", "kayak", "bike", "bicycle", "helmet"},
}

var brandLexicon = []string{
	"adidas", "apple", "bose", "canon", "dyson", "levis", "lg", "nike",
	"patagonia", "samsung", "sony", "northface", "puma", "ikea",
}

var budgetMarkers = set("cheap", "cheapest", "budget", "affordable", "under", "sale", "discount", "deal", "deals", "bargain", "inexpensive", "clearance")

var premiumMarkers = set("premium", "luxury", "designer", "highend", "professional", "pro", "quality", "flagship", "best")

var specMarkers = set("size", "gb", "tb", "inch", "inches", "mm", "cm", "model", "waterproof", "wireless", "cotton", "leather", "wool", "mah", "hz", "oled", "4k", "xl", "xs")

var comparisonMarkers = set("vs", "versus", "compare", "comparison", "difference", "or", "alternative", "alternatives")

var researchMarkers = set("how", "what", "why", "which", "review", "reviews", "guide", "tips", "rated")

var categoryIndex = func() map[string]string {
	idx := map[string]string{}
	for cat, terms := range categoryLexicon {
		for _, term := range terms {
			idx[term] = cat
		}
	}
	return idx
}()

var brandIndex = set(brandLexicon...)

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Tokenize lowercases q and splits it on anything that is not a letter or
// digit. Hyphens and apostrophes are dropped so "high-end" becomes "highend".
func Tokenize(q string) []string {
	q = strings.ToLower(q)
	q = strings.NewReplacer("-", "", "'", "").Replace(q)
	return strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// InferIntent classifies a query history. Term frequency across every query
// weights the category match; confidence combines category strength, brand
// presence and query count, less a penalty for repeated zero-result queries.
func InferIntent(queries []shop.Query) Intent {
	in := Intent{Class: IntentBrowsing, Lean: LeanNeutral, Queries: len(queries)}
	if len(queries) == 0 {
		return in
	}
	in.LastQuery = strings.TrimSpace(queries[len(queries)-1].Text)

	tokens := 0
	catHits := map[string]int{}
	brandHits := map[string]int{}
	var budget, premium, specific, compare, research int
	for _, q := range queries {
		if q.ResultCount == 0 {
			in.ZeroResults++
		}
		for _, tok := range Tokenize(q.Text) {
			tokens++
			if cat, ok := categoryIndex[tok]; ok {
				catHits[cat]++
			}
			if brandIndex[tok] {
				brandHits[tok]++
			}
			if budgetMarkers[tok] {
				budget++
			}
			if premiumMarkers[tok] {
				premium++
			}
			if specMarkers[tok] || hasDigit(tok) {
				specific++
			}
			if comparisonMarkers[tok] {
				compare++
			}
			if researchMarkers[tok] {
				research++
			}
		}
	}

	var catStrength float64
	if cat, hits := top(catHits); hits > 0 {
		in.Category = cat
		catStrength = float64(hits) / float64(tokens)
	}
	if brand, hits := top(brandHits); hits > 0 {
		in.Brand = brand
	}

	switch {
	case budget > premium:
		in.Lean = LeanBudget
	case premium > budget:
		in.Lean = LeanPremium
	}

	in.Specific = specific > 0 && (in.Category != "" || in.Brand != "")

	switch {
	case compare > 0 || len(brandHits) > 1:
		in.Class = IntentComparison
	case research > 0:
		in.Class = IntentResearch
	case in.Specific:
		in.Class = IntentSpecificProduct
	}

	in.Confidence = intentConfidence(catStrength, in.Brand != "", in.Specific, len(queries), in.ZeroResults)
	return in
}

func intentConfidence(catStrength float64, brand, specific bool, queries, zero int) float64 {
	c := 0.4 * min(catStrength*2, 1)
	if brand {
		c += 0.2
	}
	if specific {
		c += 0.15
	}
	c += 0.2 * float64(min(queries, 4)) / 4
	if zero > 1 {
		c -= 0.1 * float64(zero-1)
	}
	return max(0, min(c, MaxIntentConfidence))
}

// top returns the key with the most hits, breaking ties alphabetically.
func top(hits map[string]int) (string, int) {
	keys := make([]string, 0, len(hits))
	for k := range hits {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, n := "", 0
	for _, k := range keys {
		if hits[k] > n {
			best, n = k, hits[k]
		}
	}
	return best, n
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
