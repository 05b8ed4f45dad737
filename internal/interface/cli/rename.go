package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neilberkman/docrider/internal/core/db"
	"github.com/neilberkman/docrider/internal/core/logging"
	"github.com/neilberkman/docrider/internal/core/renamer"
	"github.com/neilberkman/docrider/internal/interface/tui"
)

var (
	renameOutput      string
	renameExecute     bool
	renameRecursive   bool
	renameReceipt     bool
	renameDelay       float64
	renameWorkers     int
	renameNoCache     bool
	renameCacheStats  bool
	renameNoImage     bool
	renameSaveLog     string
	renameMetricsFile string
	renameCopy        bool
	renameProgress    bool
)

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&renameOutput, "output", "o", "", "Directory to move renamed files into (default: next to the original)")
	f.BoolVarP(&renameExecute, "execute", "e", false, "Rename files (default is a dry run)")
	f.BoolVarP(&renameRecursive, "recursive", "r", false, "Descend into subdirectories, keeping their layout under --output")
	f.BoolVar(&renameReceipt, "receipt", false, "Use the receipt prompt (merchant, amount)")
	f.Float64VarP(&renameDelay, "delay", "d", 0.5, "Seconds to wait between starting files")
	f.IntVarP(&renameWorkers, "workers", "w", renamer.DefaultWorkers, "Files processed at once")
	f.BoolVar(&renameNoCache, "no-cache", false, "Analyze every file even if a cached analysis exists")
	f.BoolVar(&renameCacheStats, "cache-stats", false, "Print cache statistics")
	f.BoolVar(&renameNoImage, "no-image", false, "Only process PDFs")
	f.StringVar(&renameSaveLog, "save-log", "", "Write a JSON (or .yaml) log of the run")
	f.StringVar(&renameMetricsFile, "metrics-file", "", "Write run counters in Prometheus text format")
	f.BoolVar(&renameCopy, "copy", false, "Copy the new path to the clipboard (single file)")
	f.BoolVar(&renameProgress, "progress", false, "Show a live progress bar instead of one line per file")
}

func runRename(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 || renameCacheStats {
		database, err := db.New(cfg.Rename.CachePath)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = database.Close() }()
		return printCacheStats(out, database)
	}

	input, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input path: %w", err)
	}
	batch := info.IsDir()

	logger := logging.New(verbose, quiet || (renameProgress && batch))
	defer func() { _ = logger.Sync() }()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived shutdown signal, finishing files in progress...")
			cancel()
		case <-ctx.Done():
		}
	}()

	runID := uuid.NewString()
	opts := renamer.Options{
		UseCache:      !renameNoCache,
		Receipt:       renameReceipt,
		IncludeImages: cfg.Rename.IncludeImages && !renameNoImage,
		RunID:         runID,
	}
	if batch && renameRecursive {
		opts.InputRoot = input
	}

	p, err := newPipeline(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if !renameExecute {
		fmt.Fprintln(out, dryRunStyle.Render("DRY RUN: nothing will be renamed (add --execute to apply)"))
		fmt.Fprintln(out)
	}

	var failed bool
	if batch {
		failed, err = runBatch(ctx, out, p, input, opts, logger)
	} else {
		failed, err = runSingle(ctx, out, p, input, logger)
	}
	if err != nil {
		return err
	}

	if renameMetricsFile != "" {
		if err := p.renamer.Stats().WriteMetrics(renameMetricsFile); err != nil {
			logger.Warn("could not write metrics", zap.String("path", renameMetricsFile), zap.Error(err))
		}
	}
	if failed {
		return errFilesFailed
	}
	return nil
}

func runBatch(ctx context.Context, out io.Writer, p *pipeline, input string, opts renamer.Options, logger *zap.Logger) (bool, error) {
	files, err := renamer.Collect(input, renameRecursive, opts.IncludeImages)
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", input, err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No supported files found in %s\n", input)
		return false, nil
	}
	fmt.Fprintf(out, "Found %d file(s) in %s\n\n", len(files), input)

	var progress renamer.ProgressCallback = renamer.NewLineReporter(out, input)
	if renameProgress {
		restore := p.analyzer.Quiet()
		defer restore()
		progress = tui.NewBatchProgress(out)
	}

	result := p.renamer.ProcessBatch(ctx, files, renamer.BatchOptions{
		OutputDir: renameOutput,
		DryRun:    !renameExecute,
		Workers:   p.cfg.Rename.Workers,
		Delay:     time.Duration(p.cfg.Rename.DelaySeconds * float64(time.Second)),
		Progress:  progress,
	})

	fmt.Fprintln(out)
	for _, res := range result.Results {
		fmt.Fprintln(out, formatResult(res, input))
	}
	fmt.Fprintln(out)

	printSummary(out, p, result, len(files))

	if renameSaveLog != "" {
		if err := renamer.WriteLog(renameSaveLog, renamer.NewBatchLog(opts.RunID, result.Results)); err != nil {
			logger.Warn("could not save log", zap.String("path", renameSaveLog), zap.Error(err))
		} else {
			fmt.Fprintf(out, "\nLog saved to %s\n", renameSaveLog)
		}
	}

	return len(result.Failed()) > 0, nil
}

func printSummary(out io.Writer, p *pipeline, result renamer.BatchResult, total int) {
	fmt.Fprint(out, p.renamer.Stats().String())
	if stats, err := p.cache.GetStats(); err == nil {
		fmt.Fprintf(out, "  Total cache entries: %d\n", stats.TotalCached)
	}

	if failed := result.Failed(); len(failed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, failStyle.Render("Failed files:"))
		for _, res := range failed {
			fmt.Fprintf(out, "  - %s: %v\n", displayPath(res.Source, ""), res.Err)
		}
	}
	if result.Cancelled {
		fmt.Fprintf(out, "\nCancelled: %d file(s) were not started\n", total-len(result.Results))
	}
}

func runSingle(ctx context.Context, out io.Writer, p *pipeline, input string, logger *zap.Logger) (bool, error) {
	res := p.renamer.ProcessFile(ctx, input, renameOutput, !renameExecute)
	fmt.Fprintln(out, formatResult(res, ""))

	if renameSaveLog != "" {
		if err := renamer.WriteLog(renameSaveLog, renamer.NewFileLog(res)); err != nil {
			logger.Warn("could not save log", zap.String("path", renameSaveLog), zap.Error(err))
		}
	}

	if renameCopy && res.OK() && res.Destination != "" {
		if err := clipboard.WriteAll(res.Destination); err != nil {
			logger.Warn("clipboard unavailable", zap.Error(err))
		} else {
			fmt.Fprintln(out, dimStyle.Render("Copied to clipboard"))
		}
	}

	return !res.OK(), nil
}
