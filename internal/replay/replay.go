package replay

import (
	"context"
	"errors"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/event"
)

// Processor runs one event. *engine.Engine implements it.
type Processor interface {
	Process(ctx context.Context, ev event.Event) (*engine.Decision, error)
}

// Summary is the outcome of a replay.
type Summary struct {
	Events    int                `json:"events"`
	Sessions  int                `json:"sessions"`
	Failed    int                `json:"failed"`
	Decisions []*engine.Decision `json:"decisions"`
}

// Run feeds events to p in order. Per-event failures are counted, not fatal;
// Run stops early only when ctx is done.
func Run(ctx context.Context, p Processor, events []event.Event) (Summary, error) {
	var sum Summary
	seen := make(map[string]bool)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Events++
		if !seen[ev.SessionID] {
			seen[ev.SessionID] = true
			sum.Sessions++
		}
		d, err := p.Process(ctx, ev)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sum, err
			}
			sum.Failed++
			continue
		}
		if d != nil {
			sum.Decisions = append(sum.Decisions, d)
		}
	}
	return sum, nil
}

// ByType counts decisions per intervention type.
func (s Summary) ByType() map[string]int {
	out := make(map[string]int)
	for _, d := range s.Decisions {
		out[string(d.Type)]++
	}
	return out
}
