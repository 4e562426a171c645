package store

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestInitSession(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	s, err := db.InitSession("sess-001", t0)
	if err != nil {
		t.Fatalf("InitSession: %v", err)
	}
	if s.SessionID != "sess-001" {
		t.Errorf("SessionID = %q, want sess-001", s.SessionID)
	}
	if s.Status != "active" {
		t.Errorf("Status = %q, want active", s.Status)
	}
	if s.StartedAt != t0.UnixMilli() {
		t.Errorf("StartedAt = %d, want %d", s.StartedAt, t0.UnixMilli())
	}
	if s.InterventionCount != 0 {
		t.Errorf("InterventionCount = %d, want 0", s.InterventionCount)
	}
}

func TestInitSessionReactivatesEnded(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	s1, err := db.InitSession("sess-001", t0)
	if err != nil {
		t.Fatalf("InitSession: %v", err)
	}
	if err := db.EndSession("sess-001", t0.Add(time.Minute)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	s2, err := db.InitSession("sess-001", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("InitSession after end: %v", err)
	}
	if s1.ID != s2.ID {
		t.Errorf("reactivated session ID = %d, want %d", s2.ID, s1.ID)
	}
	if s2.Status != "active" {
		t.Errorf("Status = %q, want active", s2.Status)
	}
	if s2.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", *s2.EndedAt)
	}
	if s2.StartedAt != t0.UnixMilli() {
		t.Errorf("StartedAt changed to %d", s2.StartedAt)
	}
}

func TestGetSession(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	// Not found returns nil
	s, err := db.GetSession("nonexistent")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil for nonexistent session, got %+v", s)
	}

	db.InitSession("sess-001", t0)
	s, err = db.GetSession("sess-001")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s == nil {
		t.Fatal("expected session, got nil")
	}
}

func TestEndSession(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	db.InitSession("sess-001", t0)

	end := t0.Add(5 * time.Minute)
	if err := db.EndSession("sess-001", end); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	s, _ := db.GetSession("sess-001")
	if s.Status != "ended" {
		t.Errorf("Status = %q, want ended", s.Status)
	}
	if s.EndedAt == nil || *s.EndedAt != end.UnixMilli() {
		t.Errorf("EndedAt = %v, want %d", s.EndedAt, end.UnixMilli())
	}

	// Ending again is a no-op, as is ending an unknown session.
	if err := db.EndSession("sess-001", end.Add(time.Hour)); err != nil {
		t.Fatalf("EndSession on ended: %v", err)
	}
	s, _ = db.GetSession("sess-001")
	if *s.EndedAt != end.UnixMilli() {
		t.Errorf("EndedAt moved to %d", *s.EndedAt)
	}
	if err := db.EndSession("nobody", end); err != nil {
		t.Fatalf("EndSession unknown: %v", err)
	}
}

func TestGetRecentSessions(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	db.InitSession("sess-001", t0)
	db.InitSession("sess-002", t0.Add(time.Minute))
	db.InitSession("sess-003", t0.Add(2*time.Minute))

	sessions, err := db.GetRecentSessions(2)
	if err != nil {
		t.Fatalf("GetRecentSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].SessionID != "sess-003" {
		t.Errorf("first = %q, want sess-003", sessions[0].SessionID)
	}
}

func TestPurgeEnded(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.AddIntervention(testIntervention("iv-old", "old", "exit_intent", t0), t0); err != nil {
		t.Fatalf("AddIntervention: %v", err)
	}
	if err := db.EndSession("old", t0.Add(time.Hour)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := db.EndSession("missing", t0); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := db.InitSession("live", t0); err != nil {
		t.Fatalf("InitSession: %v", err)
	}

	n, err := db.PurgeEnded(t0.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeEnded: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d sessions, want 1", n)
	}
	if s, _ := db.GetSession("old"); s != nil {
		t.Errorf("old session still present: %+v", s)
	}
	ivs, err := db.GetInterventions("old")
	if err != nil {
		t.Fatalf("GetInterventions: %v", err)
	}
	if len(ivs) != 0 {
		t.Errorf("interventions of purged session = %d, want 0", len(ivs))
	}
	if s, _ := db.GetSession("live"); s == nil {
		t.Error("active session was purged")
	}
}

func TestPurgeEndedKeepsRecent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if _, err := db.InitSession("s1", t0); err != nil {
		t.Fatalf("InitSession: %v", err)
	}
	if err := db.EndSession("s1", t0.Add(3*time.Hour)); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	n, err := db.PurgeEnded(t0.Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeEnded: %v", err)
	}
	if n != 0 {
		t.Errorf("purged %d sessions, want 0", n)
	}
}
