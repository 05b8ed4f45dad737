package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neilberkman/docrider/internal/core/models"
)

// IsRenamed reports whether originalPath has already been renamed.
func (db *DB) IsRenamed(originalPath string) (bool, error) {
	_, ok, err := db.GetRenamed(originalPath)
	return ok, err
}

// GetRenamed returns the path originalPath was renamed to.
func (db *DB) GetRenamed(originalPath string) (string, bool, error) {
	var newPath string
	err := db.conn.QueryRow(
		"SELECT new_path FROM renamed_files WHERE original_path = ?", originalPath,
	).Scan(&newPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get renamed %s: %w", originalPath, err)
	}
	return newPath, true, nil
}

// TrackRenamed records that originalPath now lives at newPath. Tracking the
// same original again replaces the earlier mapping.
func (db *DB) TrackRenamed(originalPath, newPath, checksum, runID string) error {
	rec := models.RenameRecord{OriginalPath: originalPath, NewPath: newPath}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("track renamed: %w", err)
	}

	_, err := db.conn.Exec(`
		INSERT INTO renamed_files (original_path, new_path, checksum, renamed_at, run_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(original_path) DO UPDATE SET
			new_path = excluded.new_path,
			checksum = excluded.checksum,
			renamed_at = excluded.renamed_at,
			run_id = excluded.run_id
	`, originalPath, newPath, checksum, db.timestamp(), nullString(runID))
	if err != nil {
		return fmt.Errorf("track renamed %s: %w", originalPath, err)
	}
	return nil
}

// HistoryFilter narrows ListRenamed. Zero values mean no filter.
type HistoryFilter struct {
	Since      time.Time
	RunID      string
	PathPrefix string
	Limit      int
}

// ListRenamed returns rename records newest first.
func (db *DB) ListRenamed(f HistoryFilter) ([]models.RenameRecord, error) {
	query := `
		SELECT id, original_path, new_path, checksum, renamed_at, run_id
		FROM renamed_files
		WHERE 1=1`
	var args []any

	if !f.Since.IsZero() {
		query += " AND renamed_at >= ?"
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if f.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	if f.PathPrefix != "" {
		query += " AND (original_path LIKE ? ESCAPE '\\' OR new_path LIKE ? ESCAPE '\\')"
		pattern := escapeLike(f.PathPrefix) + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY renamed_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list renamed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.RenameRecord
	for rows.Next() {
		var (
			r         models.RenameRecord
			renamedAt sql.NullString
			runID     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.OriginalPath, &r.NewPath, &r.Checksum, &renamedAt, &runID); err != nil {
			return nil, fmt.Errorf("scan renamed: %w", err)
		}
		if renamedAt.Valid {
			r.RenamedAt = parseTimestamp(renamedAt.String)
		}
		r.RunID = runID.String
		records = append(records, r)
	}
	return records, rows.Err()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
