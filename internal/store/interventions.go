package store

import (
	"fmt"
	"time"
)

// maxScriptSize caps the stored script text.
const maxScriptSize = 4 * 1024

// Intervention is one fired decision as journaled.
type Intervention struct {
	ID          string
	SessionID   string
	Type        string
	Priority    int
	Stage       int
	Probability float64
	Reason      string
	Policy      string
	UIType      string
	Script      string
	Context     string // JSON
	CreatedAt   int64
}

const interventionColumns = `id, session_id, type, priority, stage, probability, reason, policy, ui_type, script, context, created_at`

func scanIntervention(row interface{ Scan(...any) error }, iv *Intervention) error {
	return row.Scan(&iv.ID, &iv.SessionID, &iv.Type, &iv.Priority, &iv.Stage, &iv.Probability,
		&iv.Reason, &iv.Policy, &iv.UIType, &iv.Script, &iv.Context, &iv.CreatedAt)
}

// AddIntervention journals iv and bumps its session's intervention count,
// creating the session row if needed.
func (db *DB) AddIntervention(iv *Intervention, sessionStart time.Time) error {
	if len(iv.Script) > maxScriptSize {
		iv.Script = iv.Script[:maxScriptSize]
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin add intervention: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO sessions (session_id, started_at, status, intervention_count, last_intervention_at)
		VALUES (?, ?, 'active', 1, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			intervention_count = intervention_count + 1,
			last_intervention_at = excluded.last_intervention_at
	`, iv.SessionID, sessionStart.UnixMilli(), iv.CreatedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO interventions (`+interventionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, iv.ID, iv.SessionID, iv.Type, iv.Priority, iv.Stage, iv.Probability,
		iv.Reason, iv.Policy, iv.UIType, iv.Script, iv.Context, iv.CreatedAt); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert intervention: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit intervention: %w", err)
	}
	return nil
}

// GetInterventions returns all interventions for a session, oldest first.
func (db *DB) GetInterventions(sessionID string) ([]Intervention, error) {
	rows, err := db.Query(`
		SELECT `+interventionColumns+`
		FROM interventions WHERE session_id = ? ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get interventions: %w", err)
	}
	defer rows.Close()

	var out []Intervention
	for rows.Next() {
		var iv Intervention
		if err := scanIntervention(rows, &iv); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// GetRecentInterventions returns the most recent interventions across all
// sessions.
func (db *DB) GetRecentInterventions(limit int) ([]Intervention, error) {
	rows, err := db.Query(`
		SELECT `+interventionColumns+`
		FROM interventions ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent interventions: %w", err)
	}
	defer rows.Close()

	var out []Intervention
	for rows.Next() {
		var iv Intervention
		if err := scanIntervention(rows, &iv); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// CountInterventionsByType returns fired counts keyed by intervention type.
func (db *DB) CountInterventionsByType() (map[string]int, error) {
	rows, err := db.Query(`SELECT type, COUNT(*) FROM interventions GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count interventions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
