package event

// MaxHistory is the number of recent events kept per session for detectors.
const MaxHistory = 20

// History is a bounded, oldest-first list of a session's recent events.
type History struct {
	Events []Event `json:"events"`
}

// Push appends ev, dropping the oldest entry once MaxHistory is exceeded.
func (h *History) Push(ev Event) {
	h.Events = append(h.Events, ev)
	if over := len(h.Events) - MaxHistory; over > 0 {
		kept := make([]Event, MaxHistory)
		copy(kept, h.Events[over:])
		h.Events = kept
	}
}

// Clone copies the held events. Payload maps are shared.
func (h *History) Clone() History {
	return History{Events: append([]Event(nil), h.Events...)}
}

// Last returns up to n of the most recent events, oldest first.
func (h *History) Last(n int) []Event {
	if n <= 0 || len(h.Events) == 0 {
		return nil
	}
	if n > len(h.Events) {
		n = len(h.Events)
	}
	return h.Events[len(h.Events)-n:]
}

// Len reports how many events are held.
func (h *History) Len() int { return len(h.Events) }

// Count returns how many of the held events have the given type.
func (h *History) Count(eventType string) int {
	n := 0
	for _, ev := range h.Events {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// LastOfType returns the most recent event of the given type.
func (h *History) LastOfType(eventType string) (Event, bool) {
	for i := len(h.Events) - 1; i >= 0; i-- {
		if h.Events[i].Type == eventType {
			return h.Events[i], true
		}
	}
	return Event{}, false
}
