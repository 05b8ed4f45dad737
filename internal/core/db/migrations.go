package db

import (
	"fmt"
)

// runMigrations applies database migrations for existing databases
func (db *DB) runMigrations() error {
	// Migration 1: tag rename records with the run that produced them
	if err := db.migration001AddRunID(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	return nil
}

// migration001AddRunID adds run_id to renamed_files. Caches created by
// earlier versions have the table without it.
func (db *DB) migration001AddRunID() error {
	has, err := db.hasColumn("renamed_files", "run_id")
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	_, err = db.conn.Exec(`
		ALTER TABLE renamed_files ADD COLUMN run_id TEXT;
		CREATE INDEX IF NOT EXISTS idx_renamed_run ON renamed_files(run_id);
	`)
	return err
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	return count > 0, nil
}
