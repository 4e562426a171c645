// Package resolver assembles the friction-specific facts an intervention
// message is rendered from.
package resolver

import (
	"strconv"
	"time"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/shop"
)

// Kind tags which shape of facts a Context carries.
type Kind string

const (
	KindGeneric    Kind = "generic"
	KindProduct    Kind = "product"
	KindCart       Kind = "cart"
	KindCheckout   Kind = "checkout"
	KindComparison Kind = "comparison"
	KindSearch     Kind = "search"
)

// ProductFacts is the product a message talks about.
type ProductFacts struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price,omitempty"`
	Stock int     `json:"stock,omitempty"`
}

// Context is the read model for one intervention. Only the fields matching
// Kind are populated.
type Context struct {
	Kind      Kind                   `json:"kind"`
	Type      friction.Type          `json:"type"`
	Evidence  string                 `json:"evidence,omitempty"`
	Product   *ProductFacts          `json:"product,omitempty"`
	CartTotal float64                `json:"cart_total,omitempty"`
	CartItems int                    `json:"cart_items,omitempty"`
	Compared  []shop.ComparedProduct `json:"compared,omitempty"`
	Intent    *Intent                `json:"intent,omitempty"`
	Extra     map[string]any         `json:"extra,omitempty"`
}

// Generic is the fallback context for t.
func Generic(t friction.Type) Context {
	return Context{Kind: KindGeneric, Type: t}
}

// Fields flattens the context into template variables. Absent facts are
// omitted so callers can substitute their own defaults.
func (c Context) Fields() map[string]string {
	f := map[string]string{}
	if c.Product != nil {
		if c.Product.Name != "" {
			f["product"] = c.Product.Name
		}
		if c.Product.Price > 0 {
			f["price"] = money(c.Product.Price)
		}
		if c.Product.Stock > 0 {
			f["stock"] = strconv.Itoa(c.Product.Stock)
		}
	}
	if c.CartTotal > 0 {
		f["cart_total"] = money(c.CartTotal)
	}
	switch {
	case c.CartItems == 1:
		f["cart_items"] = "1 item"
	case c.CartItems > 1:
		f["cart_items"] = strconv.Itoa(c.CartItems) + " items"
	}
	if len(c.Compared) > 0 && c.Compared[0].Name != "" {
		f["compare_a"] = c.Compared[0].Name
	}
	if len(c.Compared) > 1 && c.Compared[1].Name != "" {
		f["compare_b"] = c.Compared[1].Name
	}
	if c.Intent != nil {
		if c.Intent.Category != "" {
			f["category"] = c.Intent.Category
		}
		if c.Intent.Brand != "" {
			f["brand"] = c.Intent.Brand
		}
		if c.Intent.LastQuery != "" {
			f["query"] = c.Intent.LastQuery
		}
	}
	if v, ok := c.Extra[ExtraIdleSeconds].(int64); ok && v > 0 {
		f["idle"] = strconv.FormatInt(v, 10)
	}
	return f
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func productFacts(p *shop.Product) *ProductFacts {
	return &ProductFacts{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
}

func itemFacts(it shop.CartItem) *ProductFacts {
	return &ProductFacts{ID: it.ProductID, Name: it.Name, Price: it.Price, Stock: it.Stock}
}

// recentProduct returns the product in view if it was seen within window.
func recentProduct(p *shop.Product, now time.Time, window time.Duration) (*shop.Product, bool) {
	if p == nil || p.ViewedAt.IsZero() {
		return nil, false
	}
	if now.Sub(p.ViewedAt) > window {
		return nil, false
	}
	return p, true
}
