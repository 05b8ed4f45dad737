package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/neilberkman/docrider/internal/core/checksum"
	"github.com/neilberkman/docrider/internal/core/db"
	"github.com/neilberkman/docrider/internal/core/models"
	"github.com/neilberkman/docrider/internal/core/naming"
)

var debugPromptCmd = &cobra.Command{
	Use:   "debug-prompt <file>",
	Short: "Show the prompt and cached analysis for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebugPrompt,
}

var debugPromptReceipt bool

func init() {
	rootCmd.AddCommand(debugPromptCmd)
	debugPromptCmd.Flags().BoolVar(&debugPromptReceipt, "receipt", false, "Show the receipt prompt")
}

func runDebugPrompt(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	digest, err := checksum.File(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	prompt, err := cfg.Prompts().Render(filepath.Base(path), debugPromptReceipt)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	database, err := db.New(cfg.Rename.CachePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer database.Close()

	analysis, err := database.GetAnalysis(digest)
	if err != nil {
		return err
	}
	valid, err := database.ValidateAnalysis(filepath.Base(path), digest)
	if err != nil {
		return err
	}
	renamedTo, renamed, err := database.GetRenamed(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== FILE ===")
	fmt.Fprintf(out, "Path:     %s\n", path)
	fmt.Fprintf(out, "SHA-256:  %s\n", digest)
	if renamed {
		fmt.Fprintf(out, "Renamed:  %s\n", renamedTo)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== PROMPT ===")
	fmt.Fprintln(out, prompt)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== CACHED ANALYSIS ===")
	printAnalysis(out, analysis, valid, strings.ToLower(filepath.Ext(path)), debugPromptReceipt)

	return nil
}

func printAnalysis(w io.Writer, a *models.Analysis, valid bool, ext string, receipt bool) {
	if a == nil {
		fmt.Fprintln(w, "(none)")
		return
	}
	fmt.Fprintf(w, "Filename:     %s\n", a.Filename)
	fmt.Fprintf(w, "Date:         %s\n", a.Date)
	fmt.Fprintf(w, "Description:  %s\n", a.Description)
	fmt.Fprintf(w, "ID:           %s\n", a.DocID)
	fmt.Fprintf(w, "Analyzed:     %s\n", humanize.Time(a.AnalyzedAt))
	fmt.Fprintf(w, "Valid here:   %t\n", valid)
	fmt.Fprintf(w, "Would become: %s\n", naming.Generate(a.Date, a.Description, a.DocID, 0, ext, receipt))
}
