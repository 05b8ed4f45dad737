// Package renamer runs the per-file rename pipeline: history check,
// content digest, cached or fresh analysis, filename generation and a
// collision-safe rename.
package renamer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/neilberkman/docrider/internal/core/checksum"
	"github.com/neilberkman/docrider/internal/core/llm"
	"github.com/neilberkman/docrider/internal/core/metadata"
	"github.com/neilberkman/docrider/internal/core/models"
	"github.com/neilberkman/docrider/internal/core/naming"
	"github.com/neilberkman/docrider/internal/core/render"
)

// Cache is the persistent store of analyses and renames
type Cache interface {
	GetAnalysis(checksum string) (*models.Analysis, error)
	SetAnalysis(a models.Analysis) error
	ValidateAnalysis(filename, checksum string) (bool, error)
	GetRenamed(originalPath string) (string, bool, error)
	TrackRenamed(originalPath, newPath, checksum, runID string) error
}

// Analyzer returns raw model text for one document
type Analyzer interface {
	Analyze(ctx context.Context, req llm.Request) (string, error)
}

// Renderer produces the image the analyzer looks at
type Renderer interface {
	Render(ctx context.Context, path string) (llm.Image, error)
}

// Archiver receives a copy of every renamed file. Optional.
type Archiver interface {
	Archive(ctx context.Context, path string) error
}

// Options configure a Renamer
type Options struct {
	UseCache      bool   // consult the cache before analyzing; results are always written
	Receipt       bool   // receipt prompt and naming
	IncludeImages bool   // accept .jpg/.jpeg/.png as well as .pdf
	InputRoot     string // set to preserve the directory layout below it in the output
	RunID         string
}

// Status is the outcome of one file
type Status string

const (
	StatusRenamed  Status = "renamed"
	StatusDryRun   Status = "dry_run"
	StatusSkipped  Status = "skipped"
	StatusPrevious Status = "previously_renamed"
	StatusFailed   Status = "failed"
)

// Result describes what happened to one file
type Result struct {
	Source      string
	Destination string // new path; the would-be path for dry runs
	Status      Status
	Cached      bool // analysis came from the cache
	Exists      bool // dry run only: Destination is currently taken
	Err         error
}

// OK reports whether the file finished without error
func (r Result) OK() bool {
	return r.Status != StatusFailed
}

// Renamer processes files. Safe for concurrent use.
type Renamer struct {
	cache    Cache
	analyzer Analyzer
	renderer Renderer
	archiver Archiver
	opts     Options
	stats    *Stats
	logger   *zap.Logger

	flight    singleflight.Group // one analysis per digest at a time
	namespace sync.Mutex         // serializes collision resolution and rename
}

// New creates a Renamer
func New(cache Cache, analyzer Analyzer, renderer Renderer, opts Options, logger *zap.Logger) *Renamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renamer{
		cache:    cache,
		analyzer: analyzer,
		renderer: renderer,
		opts:     opts,
		stats:    NewStats(),
		logger:   logger,
	}
}

// SetArchiver enables archiving of renamed files
func (r *Renamer) SetArchiver(a Archiver) {
	r.archiver = a
}

// Stats returns the live counters
func (r *Renamer) Stats() *Stats {
	return r.stats
}

// ProcessFile runs one file through the pipeline. outputDir empty means
// the file's own directory. Errors are reported in the Result, never
// returned.
func (r *Renamer) ProcessFile(ctx context.Context, path, outputDir string, dryRun bool) Result {
	res := r.process(ctx, path, outputDir, dryRun)
	if res.OK() {
		r.stats.Processed.Add(1)
	} else {
		r.stats.Failed.Add(1)
		r.logger.Warn("file failed",
			zap.String("source", res.Source),
			zap.String("kind", string(KindOf(res.Err))),
			zap.Error(res.Err))
	}
	return res
}

func (r *Renamer) process(ctx context.Context, path, outputDir string, dryRun bool) Result {
	src, err := filepath.Abs(path)
	if err != nil {
		src = path
	}
	res := Result{Source: src}
	fail := func(kind Kind, msg string, err error) Result {
		res.Status = StatusFailed
		res.Err = newFileError(kind, src, msg, err)
		return res
	}

	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return fail(KindNotFound, "file not found", nil)
	}
	if err != nil {
		return fail(KindIOFailure, "stat", err)
	}
	if !info.Mode().IsRegular() || !IsSupported(src, r.opts.IncludeImages) {
		return fail(KindUnsupportedType, fmt.Sprintf("unsupported file type %q", filepath.Ext(src)), nil)
	}
	ext := strings.ToLower(filepath.Ext(src))
	base := filepath.Base(src)

	// History
	if prev, ok, err := r.cache.GetRenamed(src); err != nil {
		return fail(KindIOFailure, "rename history lookup", err)
	} else if ok {
		r.stats.Previously.Add(1)
		r.logger.Info("already renamed", zap.String("source", src), zap.String("destination", prev))
		res.Status = StatusPrevious
		res.Destination = prev
		return res
	}

	// Fingerprint
	digest, err := checksum.File(src)
	if err != nil {
		return fail(KindIOFailure, "checksum", err)
	}

	// Cache
	var fields metadata.Fields
	found := false
	if r.opts.UseCache {
		fields, found = r.lookup(base, digest)
		if found {
			r.stats.CacheHits.Add(1)
		} else {
			r.stats.CacheMisses.Add(1)
		}
	}
	res.Cached = found

	// Analyze, parse and store
	if !found {
		fields, err = r.analyze(ctx, src, base, digest, info.Size())
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			return res
		}
	}

	name := func(counter int) string {
		return naming.Generate(fields.Date, fields.Description, fields.DocID, counter, ext, r.opts.Receipt)
	}
	destDir := r.destDir(src, outputDir)

	if dryRun {
		target, taken, err := freeName(src, destDir, name)
		switch {
		case errors.Is(err, errSameFile):
			r.stats.Skipped.Add(1)
			res.Status = StatusSkipped
			res.Destination = src
		case err != nil:
			return fail(KindIOFailure, "check destination", err)
		default:
			res.Status = StatusDryRun
			res.Destination = target
			res.Exists = taken
		}
		r.logger.Info("planned rename",
			zap.String("source", src),
			zap.String("destination", res.Destination),
			zap.Bool("cached", found),
			zap.Bool("exists", res.Exists),
			zap.Bool("dry_run", true))
		return res
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fail(KindIOFailure, "create output directory", err)
	}

	target, err := r.place(src, destDir, name)
	if errors.Is(err, errSameFile) {
		r.stats.Skipped.Add(1)
		r.logger.Info("already has target name, skipping", zap.String("source", src))
		res.Status = StatusSkipped
		res.Destination = src
		return res
	}
	if err != nil {
		return fail(KindIOFailure, "rename", err)
	}

	r.stats.Renamed.Add(1)
	res.Status = StatusRenamed
	res.Destination = target

	newDigest, err := checksum.File(target)
	if err != nil {
		newDigest = digest
	}
	if err := r.cache.TrackRenamed(src, target, newDigest, r.opts.RunID); err != nil {
		r.logger.Warn("could not record rename", zap.String("source", src), zap.Error(err))
	}

	r.logger.Info("renamed",
		zap.String("source", src),
		zap.String("destination", target),
		zap.Bool("cached", found),
		zap.Bool("dry_run", false))

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, target); err != nil {
			r.logger.Warn("archive upload failed", zap.String("path", target), zap.Error(err))
		}
	}

	return res
}

// lookup returns cached fields for digest when the cache may be trusted
// for a file called filename.
func (r *Renamer) lookup(filename, digest string) (metadata.Fields, bool) {
	valid, err := r.cache.ValidateAnalysis(filename, digest)
	if err != nil {
		r.logger.Warn("cache validation failed", zap.String("file", filename), zap.Error(err))
		return metadata.Fields{}, false
	}
	if !valid {
		r.logger.Debug("cached analysis belongs to different content", zap.String("file", filename))
		return metadata.Fields{}, false
	}

	a, err := r.cache.GetAnalysis(digest)
	if err != nil {
		r.logger.Warn("cache read failed", zap.String("file", filename), zap.Error(err))
		return metadata.Fields{}, false
	}
	if a == nil {
		return metadata.Fields{}, false
	}
	return fieldsOf(a), true
}

// analyze renders and analyzes src. Concurrent calls for the same digest
// share one analysis.
func (r *Renamer) analyze(ctx context.Context, src, base, digest string, size int64) (metadata.Fields, error) {
	v, err, _ := r.flight.Do(digest, func() (any, error) {
		// A concurrent duplicate may have finished since our lookup.
		if r.opts.UseCache {
			if fields, ok := r.lookup(base, digest); ok {
				return fields, nil
			}
		}

		start := time.Now()
		img, err := r.renderer.Render(ctx, src)
		if err != nil {
			if errors.Is(err, render.ErrDecode) {
				return nil, newFileError(KindDecodeFailure, src, "render", err)
			}
			return nil, newFileError(KindIOFailure, src, "render", err)
		}

		raw, err := r.analyzer.Analyze(ctx, llm.Request{
			Image:        img,
			FilenameHint: base,
			Receipt:      r.opts.Receipt,
		})
		r.stats.observeAnalysis(time.Since(start))
		if err != nil {
			return nil, newFileError(KindAnalysisFailure, src, "analyze", err)
		}

		fields := metadata.Parse(raw, base)
		r.logger.Debug("parsed analysis",
			zap.String("file", base),
			zap.String("date", fields.Date),
			zap.String("description", fields.Description),
			zap.String("doc_id", fields.DocID))

		err = r.cache.SetAnalysis(models.Analysis{
			Checksum:    digest,
			Filename:    base,
			Date:        fields.Date,
			Description: fields.Description,
			DocID:       fields.DocID,
			FileSize:    size,
		})
		if err != nil {
			r.logger.Warn("cache write failed", zap.String("file", base), zap.Error(err))
		}
		return fields, nil
	})
	if err != nil {
		// A shared failure names the file that ran the analysis.
		var fe *FileError
		if errors.As(err, &fe) && fe.Path != src {
			return metadata.Fields{}, newFileError(fe.Kind, src, fe.Message, fe.cause)
		}
		return metadata.Fields{}, err
	}
	return v.(metadata.Fields), nil
}

// destDir picks where src goes: outputDir (or src's directory), plus the
// path of src relative to InputRoot when the layout is preserved.
func (r *Renamer) destDir(src, outputDir string) string {
	srcDir := filepath.Dir(src)
	if outputDir == "" {
		return srcDir
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		out = outputDir
	}
	if r.opts.InputRoot != "" {
		root, err := filepath.Abs(r.opts.InputRoot)
		if err == nil {
			if rel, err := filepath.Rel(root, srcDir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
				return filepath.Join(out, rel)
			}
		}
	}
	return out
}

func fieldsOf(a *models.Analysis) metadata.Fields {
	return metadata.Fields{Date: a.Date, Description: a.Description, DocID: a.DocID}
}
