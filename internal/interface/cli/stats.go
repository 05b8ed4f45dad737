package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/docrider/internal/core/db"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long: `Display statistics about the analysis cache: how many documents have been
analyzed, when, how many files have been renamed, and how large the cache is.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Rename.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()

	return printCacheStats(cmd.OutOrStdout(), database)
}

func printCacheStats(w io.Writer, database *db.DB) error {
	stats, err := database.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	fmt.Fprintln(w, headerStyle.Render("Cache Statistics"))
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Cached analyses:   %d\n", stats.TotalCached)
	fmt.Fprintf(w, "Renamed files:     %d\n", stats.TotalRenamed)
	if !stats.FirstEntry.IsZero() {
		fmt.Fprintf(w, "First analysis:    %s (%s)\n", stats.FirstEntry.Local().Format("Jan 2, 2006 3:04 PM"), humanize.Time(stats.FirstEntry))
		fmt.Fprintf(w, "Latest analysis:   %s (%s)\n", stats.LastEntry.Local().Format("Jan 2, 2006 3:04 PM"), humanize.Time(stats.LastEntry))
	}
	fmt.Fprintf(w, "Cache location:    %s\n", database.Path())
	fmt.Fprintf(w, "Cache size:        %s\n", humanize.Bytes(uint64(stats.FileSize)))
	return nil
}
