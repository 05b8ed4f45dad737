package db

import (
	"database/sql"
	"os"
	"time"
)

// Stats represents cache statistics
type Stats struct {
	TotalCached  int
	TotalRenamed int
	FirstEntry   time.Time // zero when the cache is empty
	LastEntry    time.Time
	FileSize     int64 // bytes on disk, including the WAL
}

// GetStats returns cache statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := db.conn.QueryRow("SELECT COUNT(*) FROM pdf_analysis").Scan(&stats.TotalCached)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRow("SELECT COUNT(*) FROM renamed_files").Scan(&stats.TotalRenamed)
	if err != nil {
		return nil, err
	}

	if stats.TotalCached > 0 {
		var first, last sql.NullString
		err = db.conn.QueryRow("SELECT MIN(analyzed_at), MAX(analyzed_at) FROM pdf_analysis").Scan(&first, &last)
		if err != nil {
			return nil, err
		}
		if first.Valid {
			stats.FirstEntry = parseTimestamp(first.String)
		}
		if last.Valid {
			stats.LastEntry = parseTimestamp(last.String)
		}
	}

	for _, p := range []string{db.path, db.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			stats.FileSize += info.Size()
		}
	}

	return stats, nil
}
