package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/gate"
)

// firing always fires, so route tests do not depend on the random draw.
type firing struct{}

func (firing) Name() string { return "firing" }

func (firing) Decide(in gate.Input, _ gate.Rand) gate.Result {
	return gate.Result{Fire: true, Type: in.Type, Probability: 1, Reason: gate.ReasonFire}
}

func firingServer(t *testing.T) *Server {
	t.Helper()
	return New(testEngine(t, true, engine.WithPolicy(firing{})), "test-version")
}

func TestPostEvent(t *testing.T) {
	srv := testServer(t)

	w := do(srv, "POST", "/api/sessions/s1/events", `{"event_type":"product_view","payload":{"product_id":"p1","price":20}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["fired"] != false {
		t.Errorf("fired = %v, want false", resp["fired"])
	}
	if resp["decision"] != nil {
		t.Errorf("decision = %v, want nil", resp["decision"])
	}
}

func TestPostEventInvalid(t *testing.T) {
	srv := testServer(t)

	if w := do(srv, "POST", "/api/sessions/s1/events", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", w.Code)
	}
	if w := do(srv, "POST", "/api/sessions/s1/events", `{"payload":{}}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing type: status = %d, want 400", w.Code)
	}
}

func TestPostEventFires(t *testing.T) {
	srv := firingServer(t)

	w := do(srv, "POST", "/api/sessions/s1/events", `{"event_type":"checkout_idle","payload":{"idle_ms":45000}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Fired    bool             `json:"fired"`
		Decision *engine.Decision `json:"decision"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Fired || resp.Decision == nil {
		t.Fatalf("expected a decision, got %s", w.Body.String())
	}
	if resp.Decision.Type != "checkout_hesitation" {
		t.Errorf("type = %s, want checkout_hesitation", resp.Decision.Type)
	}
	if resp.Decision.Intervention.Script == "" {
		t.Error("empty script")
	}

	// The decision is journaled.
	w = do(srv, "GET", "/api/sessions/s1/interventions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("interventions status = %d", w.Code)
	}
	var list struct {
		Interventions []interventionJSON `json:"interventions"`
	}
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Interventions) != 1 {
		t.Fatalf("got %d interventions, want 1", len(list.Interventions))
	}
	if list.Interventions[0].ID != resp.Decision.ID {
		t.Errorf("id = %s, want %s", list.Interventions[0].ID, resp.Decision.ID)
	}
	if string(list.Interventions[0].Context) == "{}" {
		t.Error("context not journaled")
	}
}

func TestScores(t *testing.T) {
	srv := testServer(t)

	if w := do(srv, "GET", "/api/sessions/nobody/scores", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", w.Code)
	}

	do(srv, "POST", "/api/sessions/s1/events", `{"event_type":"add_to_cart","payload":{"product_id":"p1","price":50}}`)
	w := do(srv, "GET", "/api/sessions/s1/scores", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var snap engine.ScoreSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.SessionID != "s1" {
		t.Errorf("session_id = %s", snap.SessionID)
	}
	if snap.Breakdown.Scores.Intent <= 0 {
		t.Errorf("intent = %v, want > 0", snap.Breakdown.Scores.Intent)
	}
	if snap.Events != 1 {
		t.Errorf("events = %d, want 1", snap.Events)
	}
}

func TestEndSession(t *testing.T) {
	srv := testServer(t)

	do(srv, "POST", "/api/sessions/s1/events", `{"event_type":"scroll"}`)
	w := do(srv, "DELETE", "/api/sessions/s1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if w := do(srv, "GET", "/api/sessions/s1/scores", ""); w.Code != http.StatusNotFound {
		t.Errorf("scores after end: status = %d, want 404", w.Code)
	}
}

func TestRecentInterventions(t *testing.T) {
	srv := firingServer(t)

	for i := 0; i < 3; i++ {
		do(srv, "POST", fmt.Sprintf("/api/sessions/s%d/events", i), `{"event_type":"checkout_idle","payload":{"idle_ms":45000}}`)
	}

	w := do(srv, "GET", "/api/interventions/recent?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Interventions []interventionJSON `json:"interventions"`
		ByType        map[string]int     `json:"by_type"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Interventions) != 2 {
		t.Errorf("got %d interventions, want 2", len(resp.Interventions))
	}
	if resp.ByType["checkout_hesitation"] != 3 {
		t.Errorf("by_type = %v", resp.ByType)
	}
}

func TestJournalRoutesWithoutDB(t *testing.T) {
	srv := New(testEngine(t, false), "v")

	if w := do(srv, "GET", "/api/sessions/s1/interventions", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("session interventions: status = %d, want 503", w.Code)
	}
	if w := do(srv, "GET", "/api/interventions/recent", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("recent: status = %d, want 503", w.Code)
	}
}
