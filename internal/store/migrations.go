package store

import (
	"database/sql"
	"fmt"
	"time"
)

const schemaVersion = "1"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	done, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}
	if !done {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !done {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Title metadata records, original order kept in position
		`CREATE TABLE IF NOT EXISTS title_records (
			id       TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			record   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_title_records_position ON title_records(position)`,

		// One row per (title, format) present in a holdings dataset
		`CREATE TABLE IF NOT EXISTS series (
			title_id TEXT NOT NULL,
			format   TEXT NOT NULL CHECK (format IN ('hc', 'mf')),
			PRIMARY KEY (title_id, format)
		)`,

		// Raw field values; fields are years plus the microfilm threshold field
		`CREATE TABLE IF NOT EXISTS series_values (
			title_id TEXT NOT NULL,
			format   TEXT NOT NULL,
			field    TEXT NOT NULL,
			value    REAL NOT NULL,
			PRIMARY KEY (title_id, format, field),
			FOREIGN KEY (title_id, format) REFERENCES series(title_id, format) ON DELETE CASCADE
		)`,

		// Import history
		`CREATE TABLE IF NOT EXISTS imports (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			source       TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			titles       INTEGER NOT NULL,
			hc_series    INTEGER NOT NULL,
			mf_series    INTEGER NOT NULL,
			imported_at  DATETIME NOT NULL
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap: %w", err)
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("bootstrap DDL: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": schemaVersion,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range defaults {
		_, err := s.db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}
