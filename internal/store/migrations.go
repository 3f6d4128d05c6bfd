package store

import (
	"fmt"
	"strconv"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

// schemaVersion reads the stamped version from meta. A fresh stamp is
// written by migrateV1, so a missing row is an error.
func (s *Store) schemaVersion() (int, error) {
	var raw string
	if err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&raw); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", raw, err)
	}
	return version, nil
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		goal TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		initial_context TEXT,
		current_state TEXT,
		previous_state TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

	CREATE TABLE IF NOT EXISTS updates (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		structured_state TEXT,
		processing_error TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_updates_project ON updates(project_id, created_at);

	CREATE TABLE IF NOT EXISTS risk_alerts (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_project ON risk_alerts(project_id, created_at);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migration v1 failed: %w", err)
	}
	return nil
}

// migrateV2 adds tags and comments to updates.
func (s *Store) migrateV2() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}
	if version >= 2 {
		return nil
	}

	stmts := []string{
		`ALTER TABLE updates ADD COLUMN tags TEXT`,
		`ALTER TABLE updates ADD COLUMN comments TEXT`,
		`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}
	return nil
}
