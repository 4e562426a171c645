package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a journaled shopper session.
type Session struct {
	ID                 int64
	SessionID          string
	StartedAt          int64
	EndedAt            *int64
	Status             string
	InterventionCount  int
	LastInterventionAt *int64
}

const sessionColumns = `id, session_id, started_at, ended_at, status, intervention_count, last_intervention_at`

func scanSession(row interface{ Scan(...any) error }, s *Session) error {
	return row.Scan(&s.ID, &s.SessionID, &s.StartedAt, &s.EndedAt, &s.Status, &s.InterventionCount, &s.LastInterventionAt)
}

// InitSession creates the session row if it does not exist and reactivates it
// if it had ended. startedAt is only used on insert.
func (db *DB) InitSession(sessionID string, startedAt time.Time) (*Session, error) {
	_, err := db.Exec(`
		INSERT INTO sessions (session_id, started_at, status)
		VALUES (?, ?, 'active')
		ON CONFLICT(session_id) DO UPDATE SET status = 'active', ended_at = NULL
	`, sessionID, startedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}
	return db.GetSession(sessionID)
}

// GetSession returns a session by its session_id.
func (db *DB) GetSession(sessionID string) (*Session, error) {
	var s Session
	err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID), &s)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// EndSession marks a session ended. Ending an unknown or already ended
// session is a no-op.
func (db *DB) EndSession(sessionID string, at time.Time) error {
	_, err := db.Exec(`
		UPDATE sessions SET status = 'ended', ended_at = COALESCE(ended_at, ?)
		WHERE session_id = ? AND status = 'active'
	`, at.UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// GetRecentSessions returns the most recent sessions, ordered by started_at DESC.
func (db *DB) GetRecentSessions(limit int) ([]Session, error) {
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// PurgeEnded deletes sessions that ended before cutoff, along with their
// interventions. It returns the number of sessions removed.
func (db *DB) PurgeEnded(cutoff time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM sessions WHERE status = 'ended' AND ended_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge ended sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge ended sessions: %w", err)
	}
	return n, nil
}
