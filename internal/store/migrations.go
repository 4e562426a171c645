package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "sessions: shopper sessions that produced decisions",
		SQL: `
CREATE TABLE sessions (
    id                   INTEGER PRIMARY KEY,
    session_id           TEXT NOT NULL UNIQUE,
    started_at           INTEGER NOT NULL,
    ended_at             INTEGER,
    status               TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended')),
    intervention_count   INTEGER NOT NULL DEFAULT 0,
    last_intervention_at INTEGER
);

CREATE INDEX idx_sessions_status     ON sessions(status);
CREATE INDEX idx_sessions_started_at ON sessions(started_at DESC);
`,
	},
	{
		Version:     2,
		Description: "interventions: fired intervention journal",
		SQL: `
CREATE TABLE interventions (
    id             TEXT PRIMARY KEY,
    session_id     TEXT NOT NULL,
    type           TEXT NOT NULL,
    priority       INTEGER NOT NULL,
    stage          INTEGER NOT NULL CHECK (stage BETWEEN 1 AND 3),
    probability    REAL NOT NULL,
    reason         TEXT NOT NULL,
    policy         TEXT NOT NULL,
    ui_type        TEXT NOT NULL,
    script         TEXT NOT NULL,
    context        TEXT,
    created_at     INTEGER NOT NULL,

    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX idx_interventions_session ON interventions(session_id);
CREATE INDEX idx_interventions_created ON interventions(created_at DESC);
CREATE INDEX idx_interventions_type    ON interventions(type);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
