package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/neilberkman/docrider/internal/core/config"
)

var (
	cachePath    string
	verbose      bool
	quiet        bool
	providerName string
	modelName    string
	serverURL    string
)

var versionInfo = "dev"

// errFilesFailed makes the process exit 1 after the summary was printed
var errFilesFailed = errors.New("one or more files failed")

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = version
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFilesFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrider <input_path>",
	Short: "Rename scanned documents from their content",
	Long: `docrider - give scanned PDFs and photos meaningful names

A vision model reads the first page of each document and suggests a date,
a short description and an identifier, which become the new filename:

  scan_0042.pdf  ->  2024-03-15_Acme_Electricity_Bill_INV-88123.pdf

Analyses are cached by content, so re-running over the same files is free,
and every rename is recorded so files are never renamed twice.

Runs are dry by default. Add --execute to rename.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if renameCacheStats {
			return cobra.MaximumNArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRename,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cachePath, "cache-path", filepath.Join(config.Dir(), "cache.db"), "Analysis cache database path")
	pf.BoolVar(&verbose, "verbose", false, "Log debug output")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	pf.StringVar(&providerName, "provider", "", "Analyzer backend: ollama, openai or bedrock")
	pf.StringVar(&modelName, "model", "", "Vision model name")
	pf.StringVar(&serverURL, "server", "", "Analyzer server URL")
}
