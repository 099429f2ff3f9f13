package groupstore

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	// Create the schema_version table if it does not exist.
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	row := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil {
		// No rows means version 0 (fresh database).
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial tables and indexes.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS group_sessions (
			id                    TEXT NOT NULL,
			group_id              TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			transcript_session_id TEXT NOT NULL DEFAULT '',
			status                TEXT NOT NULL DEFAULT 'pending',
			added_at              TEXT NOT NULL,
			PRIMARY KEY (group_id, id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_group_sessions_group
			ON group_sessions(group_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}

	if _, err := db.conn.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := db.conn.Exec(
		"INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion,
	); err != nil {
		return err
	}

	return nil
}
