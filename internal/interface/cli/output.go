package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/neilberkman/docrider/internal/core/renamer"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("120")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dryRunStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
)

// formatResult renders one line per file. Sources are shown relative to
// root when possible.
func formatResult(res renamer.Result, root string) string {
	src := displayPath(res.Source, root)
	dest := filepath.Base(res.Destination)

	switch res.Status {
	case renamer.StatusRenamed:
		line := fmt.Sprintf("%s %s → %s", okStyle.Render("✓"), src, dest)
		if res.Cached {
			line += dimStyle.Render(" (cached)")
		}
		return line
	case renamer.StatusDryRun:
		line := fmt.Sprintf("%s %s → %s", dryRunStyle.Render("→"), src, dest)
		var notes []string
		if res.Cached {
			notes = append(notes, "cached")
		}
		if res.Exists {
			notes = append(notes, "name taken, a version suffix will be added")
		}
		if len(notes) > 0 {
			line += dimStyle.Render(" (" + strings.Join(notes, ", ") + ")")
		}
		return line
	case renamer.StatusSkipped:
		return fmt.Sprintf("%s %s %s", dimStyle.Render("="), src, dimStyle.Render("(already named correctly)"))
	case renamer.StatusPrevious:
		return fmt.Sprintf("%s %s %s", dimStyle.Render("="), src, dimStyle.Render("(renamed earlier to "+res.Destination+")"))
	default:
		msg := "unknown error"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return fmt.Sprintf("%s %s: %s", failStyle.Render("✗"), src, msg)
	}
}

func displayPath(path, root string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filepath.Base(path)
}
