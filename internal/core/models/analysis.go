package models

import (
	"errors"
	"time"
)

// Analysis is the cached result of analyzing one document's content.
// It is keyed by Checksum; Filename is only used to validate a lookup.
type Analysis struct {
	Checksum    string // lowercase hex SHA-256 of the file content
	Filename    string // base name at the time of analysis
	Date        string // YYYY-MM-DD, empty when unknown
	Description string
	DocID       string // empty when absent
	AnalyzedAt  time.Time
	FileSize    int64
}

// Validate checks if the analysis has required fields
func (a *Analysis) Validate() error {
	if len(a.Checksum) != 64 {
		return errors.New("checksum must be a 64 character hex digest")
	}
	if a.Description == "" {
		return errors.New("description is required")
	}
	return nil
}

// RenameRecord maps an original path to the path it was renamed to.
type RenameRecord struct {
	ID           int64
	OriginalPath string
	NewPath      string
	Checksum     string // digest of the file at NewPath
	RenamedAt    time.Time
	RunID        string
}

// Validate checks if the record has required fields
func (r *RenameRecord) Validate() error {
	if r.OriginalPath == "" {
		return errors.New("original_path is required")
	}
	if r.NewPath == "" {
		return errors.New("new_path is required")
	}
	return nil
}
