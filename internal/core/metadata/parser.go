// Package metadata turns free-text model output into the fields used to
// build a filename.
package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxDescriptionLen = 50
	maxDocIDLen       = 30
	fallbackName      = "Document"
)

var (
	datePattern        = regexp.MustCompile(`Date:\s*(\d{4}-\d{2}-\d{2})`)
	descriptionPattern = regexp.MustCompile(`(?i)Description:\s*(.+?)(?:\n|$)`)
	idPattern          = regexp.MustCompile(`(?i)ID:\s*(.+?)(?:\n|$)`)

	// Anything that is not a letter, mark, digit, underscore, whitespace or hyphen.
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// Fields is what a model response yields. Empty strings mean absent;
// Description is never empty.
type Fields struct {
	Date        string
	Description string
	DocID       string
}

// Parse extracts the date, description and document ID from raw model
// output. Each field degrades on its own; Parse never fails. filename is
// the original file name, whose stem becomes the description when the
// model gives none.
func Parse(raw, filename string) Fields {
	fields := Fields{Description: Fallback(filename)}

	if m := datePattern.FindStringSubmatch(raw); m != nil && isCalendarDate(m[1]) {
		fields.Date = m[1]
	}

	if m := descriptionPattern.FindStringSubmatch(raw); m != nil {
		desc := clean(m[1])
		desc = strings.TrimSpace(whitespaceRun.ReplaceAllString(desc, " "))
		if !isPlaceholder(desc, "NONE", "UNKNOWN") && utf8.RuneCountInString(desc) >= 2 {
			fields.Description = strings.TrimSpace(truncate(desc, maxDescriptionLen))
		}
	}

	if m := idPattern.FindStringSubmatch(raw); m != nil {
		id := clean(m[1])
		id = whitespaceRun.ReplaceAllString(id, "_")
		if !isPlaceholder(id, "NONE", "UNKNOWN", "NA", "N_A") && utf8.RuneCountInString(id) >= 2 {
			fields.DocID = truncate(id, maxDocIDLen)
		}
	}

	return fields
}

// Fallback is the description used when the model did not provide a
// usable one: the file name without its extension.
func Fallback(filename string) string {
	base := filepath.Base(filename)
	if filename == "" || base == "." || base == string(filepath.Separator) {
		return fallbackName
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSpace(whitespaceRun.ReplaceAllString(clean(stem), " "))
	if stem == "" {
		return fallbackName
	}
	return strings.TrimSpace(truncate(stem, maxDescriptionLen))
}

func clean(s string) string {
	return strings.TrimSpace(disallowedChars.ReplaceAllString(strings.TrimSpace(s), ""))
}

func isPlaceholder(s string, placeholders ...string) bool {
	if s == "" {
		return true
	}
	upper := strings.ToUpper(s)
	for _, p := range placeholders {
		if upper == p {
			return true
		}
	}
	return false
}

func isCalendarDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
