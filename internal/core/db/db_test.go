package db

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neilberkman/docrider/internal/core/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// fakeClock returns strictly increasing timestamps one second apart.
func fakeClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func digest(c string) string {
	return strings.Repeat(c, 64)
}

func TestNew(t *testing.T) {
	// Use temp file for test DB
	tmpfile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Remove(tmpfile.Name()) }()
	_ = tmpfile.Close()

	database, err := New(tmpfile.Name())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = database.Close() }()

	var count int
	err = database.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('pdf_analysis', 'renamed_files')",
	).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 tables, got %d", count)
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")
	database, err := New(path)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNew_WALMode(t *testing.T) {
	database := newTestDB(t)

	var journalMode string
	err := database.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}
}

func TestNew_MigratesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// A cache written before run ids existed.
	database, err := New(path)
	require.NoError(t, err)
	_, err = database.conn.Exec(`
		DROP TABLE renamed_files;
		CREATE TABLE renamed_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_path TEXT UNIQUE NOT NULL,
			new_path TEXT NOT NULL,
			checksum TEXT NOT NULL,
			renamed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		INSERT INTO renamed_files (original_path, new_path, checksum) VALUES ('/a.pdf', '/b.pdf', 'x');
	`)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	database, err = New(path)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	has, err := database.hasColumn("renamed_files", "run_id")
	require.NoError(t, err)
	assert.True(t, has)

	newPath, ok, err := database.GetRenamed("/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/b.pdf", newPath)
}

func TestAnalysis_SetThenGet(t *testing.T) {
	database := newTestDB(t)

	want := models.Analysis{
		Checksum:    digest("a"),
		Filename:    "scan_001.pdf",
		Date:        "2024-03-15",
		Description: "Electric bill",
		DocID:       "INV-123",
		FileSize:    4096,
	}
	require.NoError(t, database.SetAnalysis(want))

	got, err := database.GetAnalysis(want.Checksum)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Filename, got.Filename)
	assert.Equal(t, want.Date, got.Date)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.DocID, got.DocID)
	assert.Equal(t, want.FileSize, got.FileSize)
	assert.False(t, got.AnalyzedAt.IsZero())
}

func TestAnalysis_GetMissing(t *testing.T) {
	database := newTestDB(t)

	got, err := database.GetAnalysis(digest("f"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAnalysis_OptionalFieldsRoundTripEmpty(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SetAnalysis(models.Analysis{
		Checksum:    digest("b"),
		Filename:    "photo.jpg",
		Description: "Receipt",
	}))

	got, err := database.GetAnalysis(digest("b"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Date)
	assert.Empty(t, got.DocID)
}

func TestAnalysis_UpsertReplaces(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.SetAnalysis(models.Analysis{
		Checksum: digest("c"), Filename: "a.pdf", Description: "First",
	}))
	require.NoError(t, database.SetAnalysis(models.Analysis{
		Checksum: digest("c"), Filename: "b.pdf", Description: "Second", DocID: "X1",
	}))

	got, err := database.GetAnalysis(digest("c"))
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", got.Filename)
	assert.Equal(t, "Second", got.Description)
	assert.Equal(t, "X1", got.DocID)

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCached)
}

func TestAnalysis_SetRejectsInvalid(t *testing.T) {
	database := newTestDB(t)

	err := database.SetAnalysis(models.Analysis{Checksum: "short", Description: "x"})
	assert.Error(t, err)
}

func TestValidateAnalysis(t *testing.T) {
	database := newTestDB(t)
	database.now = fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	// No record for the filename: allowed.
	ok, err := database.ValidateAnalysis("scan.pdf", digest("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, database.SetAnalysis(models.Analysis{
		Checksum: digest("a"), Filename: "scan.pdf", Description: "Old scan",
	}))

	ok, err = database.ValidateAnalysis("scan.pdf", digest("a"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same name, different content.
	ok, err = database.ValidateAnalysis("scan.pdf", digest("b"))
	require.NoError(t, err)
	assert.False(t, ok)

	// The most recent record under the name wins.
	require.NoError(t, database.SetAnalysis(models.Analysis{
		Checksum: digest("b"), Filename: "scan.pdf", Description: "New scan",
	}))
	ok, err = database.ValidateAnalysis("scan.pdf", digest("b"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = database.ValidateAnalysis("scan.pdf", digest("a"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchGetAnalyses(t *testing.T) {
	database := newTestDB(t)

	for _, c := range []string{"a", "b"} {
		require.NoError(t, database.SetAnalysis(models.Analysis{
			Checksum: digest(c), Filename: c + ".pdf", Description: "Doc " + c,
		}))
	}

	got, err := database.BatchGetAnalyses([]string{digest("a"), digest("b"), digest("c")})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Doc a", got[digest("a")].Description)
	assert.NotContains(t, got, digest("c"))

	empty, err := database.BatchGetAnalyses(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTrackRenamed(t *testing.T) {
	database := newTestDB(t)

	ok, err := database.IsRenamed("/scans/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, database.TrackRenamed("/scans/a.pdf", "/scans/2024-01-01_Bill.pdf", digest("a"), "run-1"))

	ok, err = database.IsRenamed("/scans/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	newPath, ok, err := database.GetRenamed("/scans/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/scans/2024-01-01_Bill.pdf", newPath)

	// Re-tracking the same original replaces the mapping.
	require.NoError(t, database.TrackRenamed("/scans/a.pdf", "/scans/other.pdf", digest("a"), "run-2"))
	newPath, _, err = database.GetRenamed("/scans/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/scans/other.pdf", newPath)

	records, err := database.ListRenamed(HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-2", records[0].RunID)
}

func TestListRenamed_Filters(t *testing.T) {
	database := newTestDB(t)
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	database.now = fakeClock(start)

	require.NoError(t, database.TrackRenamed("/in/a.pdf", "/out/A.pdf", digest("a"), "run-1"))
	require.NoError(t, database.TrackRenamed("/in/b.pdf", "/out/B.pdf", digest("b"), "run-1"))
	require.NoError(t, database.TrackRenamed("/other/c_1.pdf", "/other/C.pdf", digest("c"), "run-2"))

	all, err := database.ListRenamed(HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/other/c_1.pdf", all[0].OriginalPath, "newest first")

	byRun, err := database.ListRenamed(HistoryFilter{RunID: "run-1"})
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	since, err := database.ListRenamed(HistoryFilter{Since: start.Add(2 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	byPath, err := database.ListRenamed(HistoryFilter{PathPrefix: "/out/"})
	require.NoError(t, err)
	assert.Len(t, byPath, 2)

	// Underscore is literal, not a LIKE wildcard.
	literal, err := database.ListRenamed(HistoryFilter{PathPrefix: "/other/c_"})
	require.NoError(t, err)
	assert.Len(t, literal, 1)

	limited, err := database.ListRenamed(HistoryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetStats(t *testing.T) {
	database := newTestDB(t)
	start := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	database.now = fakeClock(start)

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCached)
	assert.True(t, stats.FirstEntry.IsZero())

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, database.SetAnalysis(models.Analysis{
			Checksum: digest(c), Filename: c + ".pdf", Description: "Doc",
		}))
	}
	require.NoError(t, database.TrackRenamed("/a.pdf", "/Doc.pdf", digest("a"), ""))

	stats, err = database.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalCached)
	assert.Equal(t, 1, stats.TotalRenamed)
	assert.Equal(t, start.Add(time.Second), stats.FirstEntry)
	assert.Equal(t, start.Add(3*time.Second), stats.LastEntry)
	assert.Positive(t, stats.FileSize)
}

func TestConcurrentWriters(t *testing.T) {
	database := newTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := string(rune('a' + i))
			assert.NoError(t, database.SetAnalysis(models.Analysis{
				Checksum: digest(c), Filename: c + ".pdf", Description: "Doc",
			}))
			assert.NoError(t, database.TrackRenamed("/"+c+".pdf", "/Doc_"+c+".pdf", digest(c), "run"))
		}(i)
	}
	wg.Wait()

	stats, err := database.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 8, stats.TotalCached)
	assert.Equal(t, 8, stats.TotalRenamed)
}
