// Package daemon watches an inbox directory and renames scans as they
// arrive.
package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/neilberkman/docrider/internal/core/renamer"
)

// DefaultSettle is how long a file must go without writes before it is
// processed. Scanners often write a PDF in several passes.
const DefaultSettle = 2 * time.Second

// Processor handles one settled file
type Processor interface {
	ProcessFile(ctx context.Context, path, outputDir string, dryRun bool) renamer.Result
}

// Config describes what to watch
type Config struct {
	Dir             string
	OutputDir       string // empty renames in place
	Recursive       bool
	IncludeImages   bool
	DryRun          bool
	Settle          time.Duration
	ProcessExisting bool   // handle files already in Dir at startup
	PauseFile       string // while this file exists, new files are ignored
}

// Stats tracks watcher activity
type Stats struct {
	StartTime time.Time
	Renamed   int
	Skipped   int
	Errors    int
	LastEvent time.Time
}

// Watcher feeds settled files from an inbox to a Processor
type Watcher struct {
	cfg     Config
	proc    Processor
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu       sync.Mutex
	pending  map[string]*time.Timer
	produced map[string]struct{} // destinations we created; their events are ours
	stats    Stats

	ready chan string
}

// NewWatcher validates cfg and opens an fsnotify watcher
func NewWatcher(cfg Config, proc Processor, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch path does not exist: %s", cfg.Dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path is not a directory: %s", cfg.Dir)
	}
	cfg.Dir = dir

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		cfg:      cfg,
		proc:     proc,
		watcher:  fw,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		produced: make(map[string]struct{}),
		stats:    Stats{StartTime: time.Now()},
		ready:    make(chan string, 64),
	}, nil
}

// Stats returns a snapshot of the counters
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches until ctx is cancelled. A file being processed when ctx ends
// is finished first.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addWatches(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}
	w.logger.Info("watching inbox",
		zap.String("dir", w.cfg.Dir),
		zap.Bool("recursive", w.cfg.Recursive),
		zap.Duration("settle", w.cfg.Settle))

	if w.cfg.ProcessExisting {
		files, err := renamer.Collect(w.cfg.Dir, w.cfg.Recursive, w.cfg.IncludeImages)
		if err != nil {
			w.logger.Warn("initial scan failed", zap.Error(err))
		}
		for _, f := range files {
			w.schedule(ctx, f)
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.logger.Info("watcher shutting down")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.Warn("watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case path := <-w.ready:
			w.process(context.WithoutCancel(ctx), path)
		}
	}
}

func (w *Watcher) addWatches(root string) error {
	if !w.cfg.Recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) && w.cfg.Recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addWatches(event.Name); err != nil {
				w.logger.Warn("could not watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !renamer.IsSupported(event.Name, w.cfg.IncludeImages) || w.ignored(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

func (w *Watcher) ignored(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.produced[path]
	return ok
}

// schedule (re)starts the settle timer for path
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.LastEvent = time.Now()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) paused() bool {
	if w.cfg.PauseFile == "" {
		return false
	}
	_, err := os.Stat(w.cfg.PauseFile)
	return err == nil
}

func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	if w.paused() {
		w.logger.Debug("paused, ignoring", zap.String("file", path))
		return
	}
	if _, err := os.Stat(path); err != nil {
		// Moved away before it settled
		return
	}

	res := w.proc.ProcessFile(ctx, path, w.cfg.OutputDir, w.cfg.DryRun)

	w.mu.Lock()
	defer w.mu.Unlock()
	switch res.Status {
	case renamer.StatusRenamed:
		w.stats.Renamed++
		w.produced[res.Destination] = struct{}{}
	case renamer.StatusFailed:
		w.stats.Errors++
	default:
		w.stats.Skipped++
	}
}
