package metadata

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		filename string
		want     Fields
	}{
		{
			name:     "all fields",
			raw:      "Date: 2024-03-15\nDescription: Electric Bill\nID: INV-123",
			filename: "scan.pdf",
			want:     Fields{Date: "2024-03-15", Description: "Electric Bill", DocID: "INV-123"},
		},
		{
			name:     "placeholders",
			raw:      "Date: NONE\nDescription: NONE\nID: NONE",
			filename: "scan_001.pdf",
			want:     Fields{Description: "scan_001"},
		},
		{
			name:     "unknown description falls back",
			raw:      "Description: unknown",
			filename: "Tax Return.pdf",
			want:     Fields{Description: "Tax Return"},
		},
		{
			name:     "empty response",
			raw:      "",
			filename: "photo.jpg",
			want:     Fields{Description: "photo"},
		},
		{
			name: "no filename",
			raw:  "garbage",
			want: Fields{Description: "Document"},
		},
		{
			name:     "punctuation stripped and whitespace collapsed",
			raw:      "Description:   Kwik-Fit   Invoice!!! (paid)\nID: 147 218/533",
			filename: "a.pdf",
			want:     Fields{Description: "Kwik-Fit Invoice paid", DocID: "147_218533"},
		},
		{
			name:     "single char description is rejected",
			raw:      "Description: X",
			filename: "b.pdf",
			want:     Fields{Description: "b"},
		},
		{
			name:     "na id variants",
			raw:      "Description: Bill\nID: N/A",
			filename: "c.pdf",
			want:     Fields{Description: "Bill"},
		},
		{
			name:     "short id",
			raw:      "Description: Bill\nID: 7",
			filename: "c.pdf",
			want:     Fields{Description: "Bill"},
		},
		{
			name:     "labels are case insensitive",
			raw:      "description: Water bill\nid: ab-9",
			filename: "c.pdf",
			want:     Fields{Description: "Water bill", DocID: "ab-9"},
		},
		{
			name:     "impossible date is dropped",
			raw:      "Date: 2024-13-45\nDescription: Letter",
			filename: "c.pdf",
			want:     Fields{Description: "Letter"},
		},
		{
			name:     "prefixed id labels are accepted",
			raw:      "Description: Policy\nDocID: POL-77",
			filename: "c.pdf",
			want:     Fields{Description: "Policy", DocID: "POL-77"},
		},
		{
			name:     "underscore id label",
			raw:      "Description: Policy\nDocument_ID: 123",
			filename: "c.pdf",
			want:     Fields{Description: "Policy", DocID: "123"},
		},
		{
			name:     "unicode letters survive",
			raw:      "Description: Café Müller Rechnung",
			filename: "c.pdf",
			want:     Fields{Description: "Café Müller Rechnung"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw, tt.filename))
		})
	}
}

func TestParse_Truncation(t *testing.T) {
	raw := "Description: " + strings.Repeat("word ", 20) + "\nID: " + strings.Repeat("A", 40)
	got := Parse(raw, "x.pdf")

	assert.LessOrEqual(t, utf8.RuneCountInString(got.Description), maxDescriptionLen)
	assert.Equal(t, strings.TrimSpace(got.Description), got.Description)
	assert.Equal(t, strings.Repeat("A", maxDocIDLen), got.DocID)
}

func TestParse_DescriptionNeverEmpty(t *testing.T) {
	inputs := []string{"", "Description:", "Description: !!!", "Description: ?", "ID: 12"}
	for _, raw := range inputs {
		got := Parse(raw, "")
		assert.NotEmpty(t, got.Description, "raw=%q", raw)
	}
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "Document", Fallback(""))
	assert.Equal(t, "invoice", Fallback("/scans/invoice.pdf"))
	assert.Equal(t, "Document", Fallback("???.pdf"))
	assert.Equal(t, "scan 2024", Fallback("scan  2024.PDF"))
	assert.Equal(t, maxDescriptionLen, utf8.RuneCountInString(Fallback(strings.Repeat("x", 80)+".pdf")))
}
