package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/event"
	"github.com/lazypower/nudge/internal/session"
	"github.com/lazypower/nudge/internal/store"
)

const (
	maxEventBody       = 1 << 20
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var ev event.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ev.SessionID = sessionID
	if ev.Type == "" {
		writeError(w, http.StatusBadRequest, "event_type required")
		return
	}

	d, err := s.engine.Process(r.Context(), ev)
	switch {
	case errors.Is(err, engine.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrLeaseTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "session busy")
		return
	case err != nil:
		s.log.Error("process event",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fired":    d != nil,
		"decision": d,
	})
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snap, err := s.engine.Snapshot(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.engine.EndSession(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

type interventionJSON struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Type        string          `json:"type"`
	Priority    int             `json:"priority"`
	Stage       int             `json:"stage"`
	Probability float64         `json:"probability"`
	Reason      string          `json:"reason"`
	Policy      string          `json:"policy"`
	UIType      string          `json:"ui_type"`
	Script      string          `json:"script"`
	Context     json.RawMessage `json:"context"`
	CreatedAt   int64           `json:"created_at"`
}

func toJSON(ivs []store.Intervention) []interventionJSON {
	out := make([]interventionJSON, len(ivs))
	for i, iv := range ivs {
		ctx := json.RawMessage(iv.Context)
		if !json.Valid(ctx) {
			ctx = json.RawMessage("{}")
		}
		out[i] = interventionJSON{
			ID:          iv.ID,
			SessionID:   iv.SessionID,
			Type:        iv.Type,
			Priority:    iv.Priority,
			Stage:       iv.Stage,
			Probability: iv.Probability,
			Reason:      iv.Reason,
			Policy:      iv.Policy,
			UIType:      iv.UIType,
			Script:      iv.Script,
			Context:     ctx,
			CreatedAt:   iv.CreatedAt,
		}
	}
	return out
}

func (s *Server) handleSessionInterventions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	ivs, err := s.db.GetInterventions(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"interventions": toJSON(ivs),
	})
}

func (s *Server) handleRecentInterventions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}

	limit := defaultRecentLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxRecentLimit)
		}
	}

	ivs, err := s.db.GetRecentInterventions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := s.db.CountInterventionsByType()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interventions": toJSON(ivs),
		"by_type":       counts,
	})
}
