package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/neilberkman/docrider/internal/core/db"
	"github.com/neilberkman/docrider/internal/core/models"
)

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "List renamed files, newest first",
	Long: `List files docrider has renamed, newest first.

Examples:
  docrider history                      Last 50 renames
  docrider history ~/Scans --since "last week"
  docrider history --since 2024-01-01 --limit 0
  docrider history --run 5f0c...        Renames from one run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historySince string
	historyLimit int
	historyRun   string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historySince, "since", "", `Only renames after this time ("yesterday", "last week", 2024-01-01)`)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum records to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Only renames from this run ID")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filter := db.HistoryFilter{RunID: historyRun, Limit: historyLimit}
	if len(args) == 1 {
		prefix, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		filter.PathPrefix = prefix
	}
	if historySince != "" {
		since, err := parseSince(historySince, time.Now())
		if err != nil {
			return err
		}
		filter.Since = since
	}

	database, err := db.New(cfg.Rename.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() { _ = database.Close() }()

	records, err := database.ListRenamed(filter)
	if err != nil {
		return err
	}

	printHistory(cmd.OutOrStdout(), records)
	return nil
}

func printHistory(w io.Writer, records []models.RenameRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No renames found.")
		return
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %s → %s\n",
			dimStyle.Render(humanize.Time(r.RenamedAt)),
			r.OriginalPath,
			filepath.Base(r.NewPath))
	}
	fmt.Fprintf(w, "\n%d rename(s)\n", len(records))
}

// parseSince understands natural language ("2 days ago", "last week") as
// well as plain dates.
func parseSince(s string, now time.Time) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a date", s)
	}
	return result.Time, nil
}
