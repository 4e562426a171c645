package script

import "github.com/lazypower/nudge/internal/friction"

// stage is one step of a type's escalation. Generic is used instead of Text
// when the context carries no facts.
type stage struct {
	UI      UIType
	Text    string
	Generic string
}

// progressions maps each type to its 1-3 stages: informational, persuasive,
// then a concrete incentive.
var progressions = map[friction.Type][]stage{
	friction.ExitIntent: {
		{
			UI:      UIModal,
			Text:    "Before you go: {product} is still in your cart ({cart_total}).",
			Generic: "Before you go: can we help you find anything?",
		},
	},
	friction.CheckoutHesitation: {
		{
			UI:      UIChatBubble,
			Text:    "Questions about the {cart_items} in your cart? We're here to help.",
			Generic: "Questions about checkout? We're here to help.",
		},
		{
			UI:      UIBanner,
			Text:    "Free returns within 30 days on your {cart_total} order. Checkout is secure.",
			Generic: "Free returns within 30 days. Checkout is secure.",
		},
		{
			UI:      UIBanner,
			Text:    "Finish checkout in the next 15 minutes for a free shipping upgrade on {cart_total}. Code FASTSHIP.",
			Generic: "Finish checkout in the next 15 minutes for a free shipping upgrade. Code FASTSHIP.",
		},
	},
	friction.SearchFrustration: {
		{
			UI:      UIInlineTip,
			Text:    "Not finding the right {category}? Try fewer words or browse {category} by brand.",
			Generic: "Not finding it? Try fewer words or browse our categories.",
		},
		{
			UI:      UIChatBubble,
			Text:    "Tell us what you need in {category} and we'll pick three matches for you.",
			Generic: "Tell us what you need and we'll pick three matches for you.",
		},
	},
	friction.ComparisonParalysis: {
		{
			UI:      UIToast,
			Text:    "Torn between {compare_a} and {compare_b}? See them side by side.",
			Generic: "Comparing a few options? See them side by side.",
		},
		{
			UI:      UIToast,
			Text:    "Most shoppers who compared these chose {compare_a}.",
			Generic: "Need a hand deciding? Our top-rated picks are a safe bet.",
		},
	},
	friction.PriceSensitivity: {
		{
			UI:      UIInlineTip,
			Text:    "{product} at {price} includes free returns and a one-year warranty.",
			Generic: "Every order includes free returns and a one-year warranty.",
		},
		{
			UI:      UIToast,
			Text:    "{product} is our best value in its range at {price}.",
			Generic: "Check out our best-value picks in this range.",
		},
		{
			UI:      UIBanner,
			Text:    "Take 5% off {product} today with code VALUE5.",
			Generic: "Take 5% off today with code VALUE5.",
		},
	},
	friction.SizeUncertainty: {
		{
			UI:      UIInlineTip,
			Text:    "Unsure about sizing for {product}? Most shoppers find it true to size, and exchanges are free.",
			Generic: "Unsure about sizing? Exchanges are always free.",
		},
	},
	friction.BrowsingLost: {
		{
			UI:      UIChatBubble,
			Text:    "Looking for {category}? We can narrow it down in a few questions.",
			Generic: "Looking for something specific? We can narrow it down in a few questions.",
		},
		{
			UI:      UIChatBubble,
			Text:    "Here are this week's most loved {category} picks.",
			Generic: "Here are this week's most loved picks.",
		},
	},
	friction.SortCycling: {
		{
			UI:      UIToast,
			Text:    "Tip: filter by rating to surface picks like {product} faster.",
			Generic: "Tip: filter by rating to find top picks faster.",
		},
	},
	friction.FilterChurn: {
		{
			UI:      UIToast,
			Text:    "Tip: save your filters so {product} and similar items stay in view.",
			Generic: "Tip: save your filters so the right items stay in view.",
		},
	},
}

// fallback is used for types with no progression.
var fallback = stage{
	UI:      UIToast,
	Text:    "Need a hand? We're here to help.",
	Generic: "Need a hand? We're here to help.",
}

// defaults substitute for absent context fields.
var defaults = map[string]string{
	"product":    "this item",
	"price":      "a great price",
	"cart_total": "your cart",
	"cart_items": "items",
	"stock":      "a few",
	"category":   "items",
	"brand":      "our top brands",
	"query":      "your search",
	"compare_a":  "the first option",
	"compare_b":  "the second option",
	"idle":       "a while",
}
