// Package tracker keeps the product, cart, comparison and search read models
// for each session by observing the same event stream the engine scores.
package tracker

import (
	"sync"

	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/shop"
)

// MaxQueries bounds the stored search history per session.
const MaxQueries = 50

type state struct {
	product  *shop.Product
	cart     shop.Cart
	compare  map[string]shop.ComparedProduct
	queries  []shop.Query
	counters shop.Counters
	seen     map[string]bool
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*state
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{sessions: make(map[string]*state)}
}

func (t *Tracker) get(id string) *state {
	s, ok := t.sessions[id]
	if !ok {
		s = &state{compare: map[string]shop.ComparedProduct{}, seen: map[string]bool{}}
		t.sessions[id] = s
	}
	return s
}

// Observe folds ev into its session's read models. Events with missing or
// malformed fields update whatever they can.
func (t *Tracker) Observe(ev event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(ev.SessionID)

	switch ev.Type {
	case event.ProductView:
		p := productFrom(ev)
		if p.ID == "" {
			return
		}
		s.product = &p
		if !s.seen[p.ID] {
			s.seen[p.ID] = true
			s.counters.DistinctProducts++
		}
		if c, ok := s.compare[p.ID]; ok {
			c.ViewCount++
			c.LastViewed = ev.Timestamp
			s.compare[p.ID] = c
		}

	case event.CompareAdd:
		p := productFrom(ev)
		if p.ID == "" {
			return
		}
		c, ok := s.compare[p.ID]
		if !ok {
			c = shop.ComparedProduct{ID: p.ID, Name: p.Name, Price: p.Price}
		}
		c.ViewCount++
		c.LastViewed = ev.Timestamp
		s.compare[p.ID] = c

	case event.AddToCart:
		p := productFrom(ev)
		if p.ID == "" {
			return
		}
		qty := 1
		if q, ok := ev.Int("quantity"); ok && q > 0 {
			qty = q
		}
		for i := range s.cart.Items {
			if s.cart.Items[i].ProductID == p.ID {
				s.cart.Items[i].Quantity += qty
				return
			}
		}
		s.cart.Items = append(s.cart.Items, shop.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  qty,
			Stock:     p.Stock,
		})

	case event.RemoveFromCart:
		id, ok := ev.String("product_id")
		if !ok {
			return
		}
		items := s.cart.Items[:0]
		for _, it := range s.cart.Items {
			if it.ProductID != id {
				items = append(items, it)
			}
		}
		s.cart.Items = items

	case event.CartOpen:
		s.cart.LastOpened = ev.Timestamp

	case event.Search:
		q := shop.Query{Text: ev.StringOr("query", ""), At: ev.Timestamp}
		if n, ok := ev.Int("result_count"); ok {
			q.ResultCount = n
		}
		s.queries = append(s.queries, q)
		if len(s.queries) > MaxQueries {
			s.queries = s.queries[len(s.queries)-MaxQueries:]
		}

	case event.PriceHover:
		s.counters.PriceHovers++

	case event.Scroll:
		s.counters.Scrolls++
	}
}

// Snapshot returns copies of the session's read models. Unknown sessions
// yield an empty snapshot.
func (t *Tracker) Snapshot(sessionID string) shop.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return shop.Snapshot{}
	}

	snap := shop.Snapshot{Counters: s.counters}
	if s.product != nil {
		p := *s.product
		snap.Product = &p
	}
	if len(s.cart.Items) > 0 || !s.cart.LastOpened.IsZero() {
		snap.Cart = &shop.Cart{
			Items:      append([]shop.CartItem(nil), s.cart.Items...),
			LastOpened: s.cart.LastOpened,
		}
	}
	if len(s.compare) > 0 {
		m := make(map[string]shop.ComparedProduct, len(s.compare))
		for k, v := range s.compare {
			m[k] = v
		}
		snap.Comparison = &shop.Comparison{Products: m}
	}
	if len(s.queries) > 0 {
		snap.Search = &shop.Search{Queries: append([]shop.Query(nil), s.queries...)}
	}
	return snap
}

// Forget drops a session.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// Len returns the number of tracked sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func productFrom(ev event.Event) shop.Product {
	p := shop.Product{
		ID:       ev.StringOr("product_id", ""),
		Name:     ev.StringOr("name", ev.StringOr("product_name", "")),
		Category: ev.StringOr("category", ""),
		Brand:    ev.StringOr("brand", ""),
		ViewedAt: ev.Timestamp,
	}
	if v, ok := ev.Float("price"); ok && v >= 0 {
		p.Price = v
	}
	if v, ok := ev.Int("stock"); ok && v >= 0 {
		p.Stock = v
	}
	return p
}
