// Package shop holds the read models that storefront context trackers expose
// to the decision engine. The engine never mutates them.
package shop

import (
	"sort"
	"time"
)

// Product is the product currently or most recently in view.
type Product struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	Category string    `json:"category,omitempty"`
	Brand    string    `json:"brand,omitempty"`
	Stock    int       `json:"stock,omitempty"`
	ViewedAt time.Time `json:"viewed_at"`
}

// CartItem is one line in the cart.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock,omitempty"`
}

// LineTotal is price times quantity, treating a zero quantity as one.
func (c CartItem) LineTotal() float64 {
	q := c.Quantity
	if q <= 0 {
		q = 1
	}
	return c.Price * float64(q)
}

// Cart is the session's cart contents.
type Cart struct {
	Items      []CartItem `json:"items"`
	LastOpened time.Time  `json:"last_opened"`
}

// Total sums every line.
func (c *Cart) Total() float64 {
	if c == nil {
		return 0
	}
	var t float64
	for _, it := range c.Items {
		t += it.LineTotal()
	}
	return t
}

// Empty reports whether the cart has no items.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// HighestValue returns the item with the largest line total.
func (c *Cart) HighestValue() (CartItem, bool) {
	if c.Empty() {
		return CartItem{}, false
	}
	best := c.Items[0]
	for _, it := range c.Items[1:] {
		if it.LineTotal() > best.LineTotal() {
			best = it
		}
	}
	return best, true
}

// ComparedProduct is a product in the comparison set.
type ComparedProduct struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	ViewCount  int       `json:"view_count"`
	LastViewed time.Time `json:"last_viewed"`
}

// Comparison is the set of products the shopper is weighing.
type Comparison struct {
	Products map[string]ComparedProduct `json:"products"`
}

// Size returns the number of compared products.
func (c *Comparison) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}

// Has reports whether productID is in the comparison set.
func (c *Comparison) Has(productID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Products[productID]
	return ok
}

// Ranked returns compared products by view count, most recently viewed first
// on ties, then by ID for stability.
func (c *Comparison) Ranked() []ComparedProduct {
	if c == nil {
		return nil
	}
	out := make([]ComparedProduct, 0, len(c.Products))
	for _, p := range c.Products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ViewCount != out[j].ViewCount {
			return out[i].ViewCount > out[j].ViewCount
		}
		if !out[i].LastViewed.Equal(out[j].LastViewed) {
			return out[i].LastViewed.After(out[j].LastViewed)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Query is one search the shopper ran.
type Query struct {
	Text        string    `json:"text"`
	ResultCount int       `json:"result_count"`
	At          time.Time `json:"at"`
}

// Search is the session's accumulated query history.
type Search struct {
	Queries []Query `json:"queries"`
}

// ZeroResultCount counts queries that returned nothing.
func (s *Search) ZeroResultCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, q := range s.Queries {
		if q.ResultCount == 0 {
			n++
		}
	}
	return n
}

// Counters are aggregate behavior counts used by secondary intervention gates.
type Counters struct {
	PriceHovers      int `json:"price_hovers"`
	Scrolls          int `json:"scrolls"`
	DistinctProducts int `json:"distinct_products"`
}

// Snapshot bundles every context a tracker exposes for one session. Any
// pointer may be nil when the tracker has nothing for the session.
type Snapshot struct {
	Product    *Product    `json:"product,omitempty"`
	Cart       *Cart       `json:"cart,omitempty"`
	Comparison *Comparison `json:"comparison,omitempty"`
	Search     *Search     `json:"search,omitempty"`
	Counters   Counters    `json:"counters"`
}
