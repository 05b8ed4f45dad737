package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/neilberkman/docrider/internal/core/checksum"
	"github.com/neilberkman/docrider/internal/core/db"
	"github.com/neilberkman/docrider/internal/core/models"
	"github.com/neilberkman/docrider/internal/core/renamer"
)

// LookupFileArgs defines arguments for the lookup_file tool
type LookupFileArgs struct {
	Path string `json:"path" jsonschema:"description=Path of a scanned document,required"`
}

// LookupDirectoryArgs defines arguments for the lookup_directory tool
type LookupDirectoryArgs struct {
	Dir       string `json:"dir" jsonschema:"description=Directory of scanned documents,required"`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"description=Include subdirectories"`
}

// RenameHistoryArgs defines arguments for the rename_history tool
type RenameHistoryArgs struct {
	Limit      int    `json:"limit,omitempty" jsonschema:"description=Max records to return (default: 20)"`
	Since      string `json:"since,omitempty" jsonschema:"description=Only renames on or after this date (ISO 8601)"`
	RunID      string `json:"run_id,omitempty" jsonschema:"description=Only renames from this run"`
	PathPrefix string `json:"path_prefix,omitempty" jsonschema:"description=Only files whose old or new path starts with this"`
}

// CacheStats is the cache_stats payload
type CacheStats struct {
	Path         string `json:"path"`
	TotalCached  int    `json:"total_cached"`
	TotalRenamed int    `json:"total_renamed"`
	FirstEntry   string `json:"first_entry,omitempty"`
	LastEntry    string `json:"last_entry,omitempty"`
	FileSize     int64  `json:"file_size_bytes"`
}

// FileLookup is the lookup_file payload
type FileLookup struct {
	Path       string    `json:"path"`
	Checksum   string    `json:"checksum"`
	Analysis   *Analysis `json:"analysis,omitempty"`
	CacheValid bool      `json:"cache_valid"`
	RenamedTo  string    `json:"renamed_to,omitempty"`
}

// DirectoryLookup is the lookup_directory payload
type DirectoryLookup struct {
	Dir    string          `json:"dir"`
	Total  int             `json:"total"`
	Cached int             `json:"cached"`
	Files  []DirectoryFile `json:"files"`
}

// DirectoryFile is one document in a DirectoryLookup
type DirectoryFile struct {
	Path     string    `json:"path"`
	Checksum string    `json:"checksum,omitempty"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Analysis mirrors a cached analysis record
type Analysis struct {
	Filename    string `json:"filename"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description"`
	DocID       string `json:"doc_id,omitempty"`
	AnalyzedAt  string `json:"analyzed_at"`
}

// RenameEntry is one rename_history record
type RenameEntry struct {
	OriginalPath string `json:"original_path"`
	NewPath      string `json:"new_path"`
	Checksum     string `json:"checksum"`
	RenamedAt    string `json:"renamed_at"`
	RunID        string `json:"run_id,omitempty"`
}

// StartServer serves the tools over stdio until the client disconnects
func StartServer(dbPath, version string) error {
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			log.Printf("Error closing database: %v", closeErr)
		}
	}()

	return server.ServeStdio(NewServer(database, version))
}

// NewServer registers the docrider tools
func NewServer(database *db.DB, version string) *server.MCPServer {
	s := server.NewMCPServer("docrider", version)

	statsTool := mcp.NewTool("cache_stats",
		mcp.WithDescription("Report how many document analyses are cached and how many files have been renamed"),
	)
	s.AddTool(statsTool, makeCacheStatsHandler(database))

	lookupTool := mcp.NewTool("lookup_file",
		mcp.WithDescription("Fingerprint a document and return its cached analysis, whether the cache entry may be trusted for it, and where it was renamed to"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of a scanned document")),
	)
	s.AddTool(lookupTool, makeLookupFileHandler(database))

	dirTool := mcp.NewTool("lookup_directory",
		mcp.WithDescription("Fingerprint every document in a directory and report which already have a cached analysis"),
		mcp.WithString("dir",
			mcp.Required(),
			mcp.Description("Directory of scanned documents")),
		mcp.WithBoolean("recursive",
			mcp.Description("Include subdirectories (default: false)")),
	)
	s.AddTool(dirTool, makeLookupDirectoryHandler(database))

	historyTool := mcp.NewTool("rename_history",
		mcp.WithDescription("List renamed documents, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max records to return (default: 20)")),
		mcp.WithString("since",
			mcp.Description("Only renames on or after this date (ISO 8601, e.g. '2025-01-01')")),
		mcp.WithString("run_id",
			mcp.Description("Only renames from this run")),
		mcp.WithString("path_prefix",
			mcp.Description("Only files whose old or new path starts with this prefix")),
	)
	s.AddTool(historyTool, makeRenameHistoryHandler(database))

	return s
}

func makeCacheStatsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := database.GetStats()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read stats: %v", err)), nil
		}

		out := CacheStats{
			Path:         database.Path(),
			TotalCached:  stats.TotalCached,
			TotalRenamed: stats.TotalRenamed,
			FileSize:     stats.FileSize,
		}
		if !stats.FirstEntry.IsZero() {
			out.FirstEntry = stats.FirstEntry.Format(time.RFC3339)
			out.LastEntry = stats.LastEntry.Format(time.RFC3339)
		}
		return jsonResult(out)
	}
}

func makeLookupFileHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args LookupFileArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if args.Path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		path, err := filepath.Abs(args.Path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
		}
		digest, err := checksum.File(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("checksum failed: %v", err)), nil
		}

		out := FileLookup{Path: path, Checksum: digest}

		a, err := database.GetAnalysis(digest)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache read failed: %v", err)), nil
		}
		if a != nil {
			out.Analysis = analysisOf(a)
		}

		out.CacheValid, err = database.ValidateAnalysis(filepath.Base(path), digest)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache validation failed: %v", err)), nil
		}

		if newPath, ok, err := database.GetRenamed(path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history lookup failed: %v", err)), nil
		} else if ok {
			out.RenamedTo = newPath
		}

		return jsonResult(out)
	}
}

func makeLookupDirectoryHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args LookupDirectoryArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if args.Dir == "" {
			return mcp.NewToolResultError("dir is required"), nil
		}

		dir, err := filepath.Abs(args.Dir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid dir: %v", err)), nil
		}
		paths, err := renamer.Collect(dir, args.Recursive, true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out := DirectoryLookup{Dir: dir, Total: len(paths), Files: make([]DirectoryFile, 0, len(paths))}
		var digests []string
		for _, p := range paths {
			f := DirectoryFile{Path: p}
			if digest, err := checksum.File(p); err != nil {
				f.Error = err.Error()
			} else {
				f.Checksum = digest
				digests = append(digests, digest)
			}
			out.Files = append(out.Files, f)
		}

		found, err := database.BatchGetAnalyses(digests)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cache read failed: %v", err)), nil
		}
		for i := range out.Files {
			if a, ok := found[out.Files[i].Checksum]; ok {
				out.Files[i].Analysis = analysisOf(a)
				out.Cached++
			}
		}
		return jsonResult(out)
	}
}

func makeRenameHistoryHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args RenameHistoryArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		filter := db.HistoryFilter{
			RunID:      args.RunID,
			PathPrefix: args.PathPrefix,
			Limit:      args.Limit,
		}
		if filter.Limit <= 0 {
			filter.Limit = 20
		}
		if args.Since != "" {
			since, err := parseDate(args.Since)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			filter.Since = since
		}

		records, err := database.ListRenamed(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
		}

		entries := make([]RenameEntry, 0, len(records))
		for _, r := range records {
			entries = append(entries, RenameEntry{
				OriginalPath: r.OriginalPath,
				NewPath:      r.NewPath,
				Checksum:     r.Checksum,
				RenamedAt:    r.RenamedAt.Format(time.RFC3339),
				RunID:        r.RunID,
			})
		}
		return jsonResult(map[string]any{"renames": entries})
	}
}

func analysisOf(a *models.Analysis) *Analysis {
	return &Analysis{
		Filename:    a.Filename,
		Date:        a.Date,
		Description: a.Description,
		DocID:       a.DocID,
		AnalyzedAt:  a.AnalyzedAt.Format(time.RFC3339),
	}
}

func decodeArgs(request mcp.CallToolRequest, v any) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	if err := json.Unmarshal(argsBytes, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want ISO 8601)", s)
}
