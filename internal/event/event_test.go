package event

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadAccessors(t *testing.T) {
	ev := Event{Payload: map[string]any{
		"name":    "Trail Runner",
		"price":   89.5,
		"count":   float64(3),
		"numeric": "12.5",
		"bad":     math.NaN(),
		"empty":   "",
		"wrong":   []string{"x"},
	}}

	s, ok := ev.String("name")
	assert.True(t, ok)
	assert.Equal(t, "Trail Runner", s)

	_, ok = ev.String("empty")
	assert.False(t, ok)
	assert.Equal(t, "fallback", ev.StringOr("missing", "fallback"))

	f, ok := ev.Float("price")
	assert.True(t, ok)
	assert.Equal(t, 89.5, f)

	f, ok = ev.Float("numeric")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = ev.Float("bad")
	assert.False(t, ok, "NaN must be rejected")
	_, ok = ev.Float("wrong")
	assert.False(t, ok)

	n, ok := ev.Int("count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestNilPayload(t *testing.T) {
	var ev Event
	_, ok := ev.String("anything")
	assert.False(t, ok)
	_, ok = ev.Float("anything")
	assert.False(t, ok)
}

func TestHistoryBounded(t *testing.T) {
	var h History
	base := time.Unix(0, 0)
	for i := 0; i < MaxHistory+5; i++ {
		h.Push(Event{Type: Scroll, Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	require.Equal(t, MaxHistory, h.Len())
	assert.Equal(t, base.Add(5*time.Second), h.Events[0].Timestamp, "oldest entries dropped first")

	last := h.Last(3)
	require.Len(t, last, 3)
	assert.Equal(t, base.Add(time.Duration(MaxHistory+4)*time.Second), last[2].Timestamp)
	assert.Len(t, h.Last(100), MaxHistory)
	assert.Nil(t, h.Last(0))
}

func TestHistoryLookups(t *testing.T) {
	var h History
	h.Push(Event{Type: ProductView, Payload: map[string]any{"product_id": "a"}})
	h.Push(Event{Type: Scroll})
	h.Push(Event{Type: ProductView, Payload: map[string]any{"product_id": "b"}})

	assert.Equal(t, 2, h.Count(ProductView))
	ev, ok := h.LastOfType(ProductView)
	require.True(t, ok)
	assert.Equal(t, "b", ev.StringOr("product_id", ""))

	_, ok = h.LastOfType(Search)
	assert.False(t, ok)
}
