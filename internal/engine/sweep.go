package engine

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

func (e *Engine) markSeen(sessionID string, at time.Time) {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	e.seen[sessionID] = at
}

func (e *Engine) lastSeen(sessionID string) (time.Time, bool) {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	at, ok := e.seen[sessionID]
	return at, ok
}

// idleSince lists sessions whose last event arrived before cutoff.
func (e *Engine) idleSince(cutoff time.Time) []string {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()
	var ids []string
	for id, at := range e.seen {
		if at.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Sweep ends every session that has not sent an event for idle, measured on
// the engine clock at receive time. It returns the number of sessions ended.
func (e *Engine) Sweep(ctx context.Context, idle time.Duration) int {
	ended := 0
	for _, id := range e.idleSince(e.clock().Add(-idle)) {
		ok, err := e.endIfIdle(ctx, id, idle)
		if err != nil {
			e.log.Warn("sweep: end session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if ok {
			ended++
		}
	}
	return ended
}

// endIfIdle rechecks idleness under the session lock, so an event that
// arrived after the candidate list was built keeps its session alive.
func (e *Engine) endIfIdle(ctx context.Context, sessionID string, idle time.Duration) (bool, error) {
	unlock := e.locks.Lock(sessionID)
	defer unlock()
	release, err := e.lease(ctx, sessionID)
	if err != nil {
		return false, err
	}
	defer release()

	last, ok := e.lastSeen(sessionID)
	if !ok || !last.Before(e.clock().Add(-idle)) {
		return false, nil
	}
	return true, e.endLocked(ctx, sessionID)
}

// StartSweeper sweeps idle sessions every interval until Stop is called.
func (e *Engine) StartSweeper(interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := e.Sweep(context.Background(), idle); n > 0 {
					e.log.Info("sweep: ended idle sessions", zap.Int("count", n))
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}
