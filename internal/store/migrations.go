package store

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order. The schema version recorded in
// PRAGMA user_version is the number of steps already applied; append new
// steps, never edit old ones.
var migrations = [][]string{
	{
		`CREATE TABLE enrollments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			captures INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// vectors are JSON arrays, ordered by position
		`CREATE TABLE enrollment_descriptors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			vector TEXT NOT NULL,
			UNIQUE(enrollment_id, position)
		)`,
		`CREATE TABLE verifications (
			id TEXT PRIMARY KEY,
			enrollment_id TEXT NOT NULL REFERENCES enrollments(id) ON DELETE CASCADE,
			distance REAL NOT NULL,
			matched INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX idx_enrollment_descriptors_enrollment_id ON enrollment_descriptors(enrollment_id)`,
		`CREATE INDEX idx_verifications_enrollment_id ON verifications(enrollment_id)`,
	},
}

// SchemaVersion returns the number of migration steps applied.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

func (s *Store) migrate() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		err := withTx(s.db, func(tx *sql.Tx) error {
			for _, stmt := range migrations[v] {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			// PRAGMA does not take bind parameters
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}
