package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/neilberkman/docrider/internal/core/config"
	"github.com/neilberkman/docrider/internal/core/daemon"
	"github.com/neilberkman/docrider/internal/core/logging"
	"github.com/neilberkman/docrider/internal/core/renamer"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Rename documents as they arrive in an inbox directory",
	Long: `Watch a directory and rename supported files as soon as the scanner has
finished writing them.

Examples:
  docrider watch ~/Scans/Inbox -e -o ~/Scans/Filed
  docrider watch ~/Scans/Inbox -e --background
  docrider watch --status
  docrider watch --pause
  docrider watch --stop`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchExecute    bool
	watchReceipt    bool
	watchOutput     string
	watchRecursive  bool
	watchNoImage    bool
	watchSettle     time.Duration
	watchExisting   bool
	watchBackground bool
	watchStatus     bool
	watchStop       bool
	watchPause      bool
	watchResume     bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	f := watchCmd.Flags()
	f.BoolVarP(&watchExecute, "execute", "e", false, "Rename files (default is a dry run)")
	f.BoolVar(&watchReceipt, "receipt", false, "Use the receipt prompt")
	f.StringVarP(&watchOutput, "output", "o", "", "Directory to move renamed files into")
	f.BoolVarP(&watchRecursive, "recursive", "r", false, "Watch subdirectories too")
	f.BoolVar(&watchNoImage, "no-image", false, "Only process PDFs")
	f.DurationVar(&watchSettle, "settle", daemon.DefaultSettle, "Quiet time after the last write before a file is processed")
	f.BoolVar(&watchExisting, "existing", false, "Also process files already in the directory")
	f.BoolVar(&watchBackground, "background", false, "Detach and run in the background")
	f.BoolVar(&watchStatus, "status", false, "Show whether a background watcher is running")
	f.BoolVar(&watchStop, "stop", false, "Stop the background watcher")
	f.BoolVar(&watchPause, "pause", false, "Pause the background watcher")
	f.BoolVar(&watchResume, "resume", false, "Resume a paused watcher")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dm, err := daemon.NewManager(filepath.Join(config.Dir(), "watch"))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch {
	case watchStatus:
		info, err := dm.GetStatus()
		if err != nil {
			return err
		}
		if !info.IsRunning {
			fmt.Fprintln(out, "Watcher is not running")
			return nil
		}
		state := okStyle.Render("running")
		if dm.IsPaused() {
			state = dryRunStyle.Render("paused")
		}
		fmt.Fprintf(out, "Watcher %s\n", state)
		fmt.Fprintf(out, "  PID:      %d\n", info.PID)
		fmt.Fprintf(out, "  Watching: %s\n", info.Dir)
		fmt.Fprintf(out, "  Uptime:   %s\n", daemon.FormatUptime(time.Since(info.StartTime)))
		fmt.Fprintf(out, "  Log:      %s\n", dm.LogFile())
		return nil
	case watchStop:
		if err := dm.Stop(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Watcher stopped")
		return nil
	case watchPause:
		if err := dm.Pause(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Watcher paused (new files are ignored until --resume)")
		return nil
	case watchResume:
		if err := dm.Resume(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Watcher resumed")
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("watch needs a directory")
	}
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	if watchBackground {
		if err := dm.StartBackground(dir, backgroundArgs(cmd, dir)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Watcher started in the background, logging to %s\n", dm.LogFile())
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(verbose, quiet)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived shutdown signal...")
			cancel()
		case <-ctx.Done():
		}
	}()

	opts := renamer.Options{
		UseCache:      true,
		Receipt:       watchReceipt,
		IncludeImages: cfg.Rename.IncludeImages && !watchNoImage,
		RunID:         uuid.NewString(),
	}
	if watchRecursive {
		opts.InputRoot = dir
	}

	p, err := newPipeline(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	w, err := daemon.NewWatcher(daemon.Config{
		Dir:             dir,
		OutputDir:       watchOutput,
		Recursive:       watchRecursive,
		IncludeImages:   opts.IncludeImages,
		DryRun:          !watchExecute,
		Settle:          watchSettle,
		ProcessExisting: watchExisting,
		PauseFile:       dm.PauseFile(),
	}, p.renamer, logger)
	if err != nil {
		return err
	}

	if err := dm.WritePIDFile(os.Getpid(), dir); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = dm.RemovePIDFile() }()

	fmt.Fprintf(out, "Watching %s\n", dir)
	if !watchExecute {
		fmt.Fprintln(out, dryRunStyle.Render("DRY RUN: nothing will be renamed (add --execute to apply)"))
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	err = w.Run(ctx)

	stats := w.Stats()
	fmt.Fprintf(out, "\nWatched for %s: %d renamed, %d skipped, %d errors\n",
		daemon.FormatUptime(time.Since(stats.StartTime)), stats.Renamed, stats.Skipped, stats.Errors)
	return err
}

// backgroundArgs rebuilds the command line for the detached child
func backgroundArgs(cmd *cobra.Command, dir string) []string {
	args := []string{"watch", dir}
	if watchExecute {
		args = append(args, "--execute")
	}
	if watchReceipt {
		args = append(args, "--receipt")
	}
	if watchOutput != "" {
		out, err := filepath.Abs(watchOutput)
		if err != nil {
			out = watchOutput
		}
		args = append(args, "--output", out)
	}
	if watchRecursive {
		args = append(args, "--recursive")
	}
	if watchNoImage {
		args = append(args, "--no-image")
	}
	if watchExisting {
		args = append(args, "--existing")
	}
	args = append(args, "--settle", watchSettle.String())

	for _, name := range []string{"cache-path", "provider", "model", "server"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			args = append(args, "--"+name, f.Value.String())
		}
	}
	return args
}
