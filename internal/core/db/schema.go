package db

func (db *DB) initSchema() error {
	schema := `
	-- One row per distinct file content
	CREATE TABLE IF NOT EXISTS pdf_analysis (
		checksum TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		date TEXT,
		description TEXT NOT NULL,
		doc_id TEXT,
		analyzed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		file_size INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_checksum ON pdf_analysis(checksum);
	CREATE INDEX IF NOT EXISTS idx_analysis_filename ON pdf_analysis(filename);

	-- Files already renamed, keyed by where they came from
	CREATE TABLE IF NOT EXISTS renamed_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_path TEXT UNIQUE NOT NULL,
		new_path TEXT NOT NULL,
		checksum TEXT NOT NULL,
		renamed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_renamed_original ON renamed_files(original_path);
	CREATE INDEX IF NOT EXISTS idx_renamed_checksum ON renamed_files(checksum);
	`

	_, err := db.conn.Exec(schema)
	return err
}
