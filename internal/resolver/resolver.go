package resolver

import (
	"time"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/shop"
)

// RecentViewWindow is how recently a product must have been viewed for an
// exit intervention to name it.
const RecentViewWindow = 60 * time.Second

// MaxCompared is how many compared products a comparison context carries.
const MaxCompared = 2

// Extra keys set on checkout contexts.
const (
	ExtraIdleSeconds      = "idle_seconds"
	ExtraShippingViews    = "shipping_views"
	ExtraPaymentViews     = "payment_views"
	ExtraCartOpens        = "cart_opens"
	ExtraSinceCartOpenSec = "seconds_since_cart_open"
)

// Inputs are the tracker read models plus the detection that triggered the
// intervention. Every field is optional.
type Inputs struct {
	Product    *shop.Product
	Cart       *shop.Cart
	Comparison *shop.Comparison
	Search     *shop.Search
	Detection  *friction.Detection
}

// FromSnapshot builds Inputs from a tracker snapshot.
func FromSnapshot(s shop.Snapshot, d *friction.Detection) Inputs {
	return Inputs{
		Product:    s.Product,
		Cart:       s.Cart,
		Comparison: s.Comparison,
		Search:     s.Search,
		Detection:  d,
	}
}

type resolveFunc func(t friction.Type, ev event.Event, in Inputs, now time.Time) Context

var resolvers = map[friction.Type]resolveFunc{
	friction.ExitIntent:          resolveExit,
	friction.SearchFrustration:   resolveSearch,
	friction.BrowsingLost:        resolveSearch,
	friction.CheckoutHesitation:  resolveCheckout,
	friction.ComparisonParalysis: resolveComparison,
	friction.SortCycling:         resolveComparison,
	friction.FilterChurn:         resolveComparison,
	friction.SizeUncertainty:     resolveProduct,
	friction.PriceSensitivity:    resolveProduct,
}

// Resolve assembles the context for an intervention of type t. It never
// fails; missing inputs produce a generic context.
func Resolve(t friction.Type, ev event.Event, in Inputs, now time.Time) Context {
	fn, ok := resolvers[t]
	if !ok {
		return Generic(t)
	}
	c := fn(t, ev, in, now)
	if in.Detection != nil && c.Evidence == "" {
		c.Evidence = in.Detection.PrimaryEvidence()
	}
	return c
}

func resolveExit(t friction.Type, _ event.Event, in Inputs, now time.Time) Context {
	if item, ok := in.Cart.HighestValue(); ok {
		return Context{
			Kind:      KindCart,
			Type:      t,
			Product:   itemFacts(item),
			CartTotal: in.Cart.Total(),
			CartItems: len(in.Cart.Items),
		}
	}
	if p, ok := recentProduct(in.Product, now, RecentViewWindow); ok {
		return Context{Kind: KindProduct, Type: t, Product: productFacts(p)}
	}
	return Generic(t)
}

func resolveSearch(t friction.Type, _ event.Event, in Inputs, _ time.Time) Context {
	if in.Search == nil || len(in.Search.Queries) == 0 {
		return Generic(t)
	}
	intent := InferIntent(in.Search.Queries)
	return Context{Kind: KindSearch, Type: t, Intent: &intent}
}

func resolveCheckout(t friction.Type, _ event.Event, in Inputs, now time.Time) Context {
	c := Generic(t)
	if !in.Cart.Empty() {
		c.Kind = KindCheckout
		c.CartTotal = in.Cart.Total()
		c.CartItems = len(in.Cart.Items)
		if item, ok := in.Cart.HighestValue(); ok {
			c.Product = itemFacts(item)
		}
	}
	if in.Detection == nil {
		return c
	}

	d := in.Detection
	extra := map[string]any{}
	switch {
	case d.HasEvidence(friction.EvidenceCheckoutIdle):
		if ms, ok := numeric(d.Context["idle_ms"]); ok {
			extra[ExtraIdleSeconds] = int64(ms / 1000)
		}
	case d.HasEvidence(friction.EvidenceShippingRecheck):
		if n, ok := numeric(d.Context["shipping_views"]); ok {
			extra[ExtraShippingViews] = int(n)
		}
	case d.HasEvidence(friction.EvidencePaymentRecheck):
		if n, ok := numeric(d.Context["payment_views"]); ok {
			extra[ExtraPaymentViews] = int(n)
		}
	case d.HasEvidence(friction.EvidenceCartRevisit):
		if n, ok := numeric(d.Context["cart_opens"]); ok {
			extra[ExtraCartOpens] = int(n)
		}
		if in.Cart != nil && !in.Cart.LastOpened.IsZero() && !now.Before(in.Cart.LastOpened) {
			extra[ExtraSinceCartOpenSec] = int64(now.Sub(in.Cart.LastOpened) / time.Second)
		}
	}
	if len(extra) > 0 {
		c.Extra = extra
	}
	return c
}

func resolveComparison(t friction.Type, ev event.Event, in Inputs, now time.Time) Context {
	ranked := in.Comparison.Ranked()
	if len(ranked) == 0 {
		return resolveProduct(t, ev, in, now)
	}
	if len(ranked) > MaxCompared {
		ranked = ranked[:MaxCompared]
	}
	return Context{Kind: KindComparison, Type: t, Compared: ranked}
}

func resolveProduct(t friction.Type, _ event.Event, in Inputs, _ time.Time) Context {
	if in.Product == nil {
		return Generic(t)
	}
	return Context{Kind: KindProduct, Type: t, Product: productFacts(in.Product)}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
