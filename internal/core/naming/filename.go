// Package naming builds destination filenames from analysis fields.
package naming

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxLength is the longest filename Generate returns, in characters.
	MaxLength = 200
	// maxBytes keeps multi-byte names under common filesystem limits.
	maxBytes = 255
)

// Generate joins date, description, docID and a version suffix with
// underscores and appends ext unchanged. Empty date or docID are omitted;
// counter 0 adds no suffix. In receipt mode description is the store name
// and docID the item description, which yields the same layout.
//
// Only description and docID are shortened to meet MaxLength and maxBytes,
// so distinct counters always give distinct names.
func Generate(date, description, docID string, counter int, ext string, receipt bool) string {
	head := ""
	if date != "" {
		head = date + "_"
	}

	middle := segment(description)
	if docID != "" && docID != "NONE" {
		middle += "_" + segment(docID)
	}

	tail := ext
	if counter > 0 {
		tail = "_v" + strconv.Itoa(counter) + ext
	}

	return head + fit(middle, head+tail) + tail
}

func segment(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '-'
		}
		return r
	}, s)
}

// fit truncates middle so that middle plus fixed is at most MaxLength
// characters and maxBytes bytes. At least one character is kept.
func fit(middle, fixed string) string {
	limit := MaxLength - utf8.RuneCountInString(fixed)
	if limit < 1 {
		limit = 1
	}
	runes := []rune(middle)
	if len(runes) <= limit && len(middle)+len(fixed) <= maxBytes {
		return middle
	}
	if len(runes) > limit {
		runes = runes[:limit]
	}
	for len(runes) > 1 && len(string(runes))+len(fixed) > maxBytes {
		runes = runes[:len(runes)-1]
	}
	if trimmed := strings.TrimRight(string(runes), "_"); trimmed != "" {
		return trimmed
	}
	return string(runes)
}
