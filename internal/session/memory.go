package session

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lazypower/nudge/internal/gate"
)

// DefaultSize is the memory store capacity when none is configured.
const DefaultSize = 10000

// retiredPerSession sizes the tombstone cache relative to the live one.
const retiredPerSession = 4

// Memory is a bounded in-process store. Sessions expire after ttl without a
// Put, and the least recently used one is evicted when the store is full.
//
// An evicted or expired session keeps its intervention ledger as a
// tombstone, so a shopper who comes back still cannot see a fire-once
// intervention twice. Delete drops the tombstone too.
type Memory struct {
	cache   *expirable.LRU[string, *Session]
	retired *lru.Cache[string, gate.Ledger]
}

// NewMemory creates a memory store holding up to size sessions, each for ttl
// after its last Put. A non-positive ttl never expires. onEvict, if non-nil,
// is called with the ID of every session that leaves the store, whether
// evicted, expired or deleted.
func NewMemory(size int, ttl time.Duration, onEvict func(id string)) (*Memory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	retired, err := lru.New[string, gate.Ledger](size * retiredPerSession)
	if err != nil {
		return nil, fmt.Errorf("create tombstone cache: %w", err)
	}
	m := &Memory{retired: retired}
	m.cache = expirable.NewLRU[string, *Session](size, func(id string, s *Session) {
		if len(s.Ledger.Records) > 0 {
			m.retired.Add(id, s.Ledger)
		}
		if onEvict != nil {
			onEvict(id)
		}
	}, ttl)
	return m, nil
}

// Get returns a copy of the stored session. Changes are kept only once the
// copy is Put back.
func (m *Memory) Get(_ context.Context, id string) (*Session, error) {
	if s, ok := m.cache.Get(id); ok {
		return s.Clone(), nil
	}
	// An expired entry can outlive its TTL until the cleanup pass; removing
	// it here retires its ledger before the tombstone lookup.
	m.cache.Remove(id)
	if l, ok := m.retired.Peek(id); ok {
		s := New(id)
		s.Ledger = l.Clone()
		return s, nil
	}
	return nil, nil
}

func (m *Memory) Put(_ context.Context, s *Session) error {
	m.cache.Add(s.ID, s.Clone())
	m.retired.Remove(s.ID)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.cache.Remove(id)
	m.retired.Remove(id)
	return nil
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	return m.cache.Len()
}
