package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/neilberkman/docrider/internal/core/models"
)

// GetAnalysis returns the cached analysis for a content digest, or nil if
// the content has never been analyzed.
func (db *DB) GetAnalysis(checksum string) (*models.Analysis, error) {
	row := db.conn.QueryRow(`
		SELECT checksum, filename, date, description, doc_id, analyzed_at, file_size
		FROM pdf_analysis
		WHERE checksum = ?
	`, checksum)

	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", checksum, err)
	}
	return a, nil
}

// SetAnalysis stores an analysis, replacing any earlier one for the same
// digest. analyzed_at is always set to the write time.
func (db *DB) SetAnalysis(a models.Analysis) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("set analysis: %w", err)
	}

	_, err := db.conn.Exec(`
		INSERT INTO pdf_analysis
		(checksum, filename, date, description, doc_id, analyzed_at, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(checksum) DO UPDATE SET
			filename = excluded.filename,
			date = excluded.date,
			description = excluded.description,
			doc_id = excluded.doc_id,
			analyzed_at = excluded.analyzed_at,
			file_size = excluded.file_size
	`, a.Checksum, a.Filename, nullString(a.Date), a.Description, nullString(a.DocID), db.timestamp(), a.FileSize)
	if err != nil {
		return fmt.Errorf("set analysis %s: %w", a.Checksum, err)
	}
	return nil
}

// ValidateAnalysis reports whether a cache lookup for checksum may be
// trusted for a file called filename. The most recent record stored under
// that filename must carry the same digest; if there is no such record the
// lookup is allowed.
func (db *DB) ValidateAnalysis(filename, checksum string) (bool, error) {
	var stored string
	err := db.conn.QueryRow(`
		SELECT checksum FROM pdf_analysis
		WHERE filename = ?
		ORDER BY analyzed_at DESC, rowid DESC
		LIMIT 1
	`, filename).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("validate analysis %s: %w", filename, err)
	}
	return stored == checksum, nil
}

// BatchGetAnalyses looks up many digests at once. Digests without a record
// are missing from the result.
func (db *DB) BatchGetAnalyses(checksums []string) (map[string]*models.Analysis, error) {
	result := make(map[string]*models.Analysis, len(checksums))
	if len(checksums) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(checksums)), ",")
	args := make([]any, len(checksums))
	for i, c := range checksums {
		args[i] = c
	}

	rows, err := db.conn.Query(`
		SELECT checksum, filename, date, description, doc_id, analyzed_at, file_size
		FROM pdf_analysis
		WHERE checksum IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("batch get analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		result[a.Checksum] = a
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var (
		a           models.Analysis
		date, docID sql.NullString
		analyzedAt  sql.NullString
		fileSize    sql.NullInt64
	)
	if err := row.Scan(&a.Checksum, &a.Filename, &date, &a.Description, &docID, &analyzedAt, &fileSize); err != nil {
		return nil, err
	}
	a.Date = date.String
	a.DocID = docID.String
	a.FileSize = fileSize.Int64
	if analyzedAt.Valid {
		a.AnalyzedAt = parseTimestamp(analyzedAt.String)
	}
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
