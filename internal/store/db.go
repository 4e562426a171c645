package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath is the Path of a journal opened with OpenMemory.
const MemoryPath = ":memory:"

// DB is the intervention journal: one row per session that produced a
// decision and one per fired intervention.
type DB struct {
	*sql.DB
	Path string
}

// DefaultDBPath is ~/.nudge/nudge.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".nudge", "nudge.db"), nil
}

// Open opens or creates the journal at path and brings its schema up to date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path, journalPragmas)
}

// OpenMemory opens a private in-memory journal.
func OpenMemory() (*DB, error) {
	return open(MemoryPath, memoryPragmas)
}

// File journals run in WAL mode so readers (the interventions command, the
// API) never block the engine's writes.
var journalPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

var memoryPragmas = []string{
	"PRAGMA foreign_keys=ON",
}

func open(path string, pragmas []string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if path == MemoryPath {
		// Every pooled connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{DB: sqlDB, Path: path}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
