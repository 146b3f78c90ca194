package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"discleanse/utils"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens (creating if needed) the audit database at dbPath and ensures
// its schema.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit tables: %w", err)
	}

	utils.Info("database", "init", fmt.Sprintf("audit log ready at %s", dbPath))
	return db, nil
}

func createTables(db *sql.DB) error {
	queries := []string{`
    CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        guild_id TEXT NOT NULL,
        guild_name TEXT,
        started_at INTEGER NOT NULL,
        finished_at INTEGER,
        status TEXT NOT NULL DEFAULT 'running',
        bulk_deleted INTEGER DEFAULT 0,
        individual_deleted INTEGER DEFAULT 0,
        skipped INTEGER DEFAULT 0,
        channels_deleted INTEGER DEFAULT 0,
        error TEXT
    );`, `
    CREATE TABLE IF NOT EXISTS containers (
        db_id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL REFERENCES runs(run_id),
        container_id TEXT NOT NULL,
        name TEXT,
        kind TEXT,
        bulk_deleted INTEGER,
        individual_deleted INTEGER,
        skipped INTEGER,
        deleted INTEGER,
        elapsed_ms INTEGER
    );`,
		`CREATE INDEX IF NOT EXISTS idx_containers_run ON containers(run_id);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
