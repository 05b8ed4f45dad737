package naming

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name        string
		date        string
		description string
		docID       string
		counter     int
		ext         string
		receipt     bool
		want        string
	}{
		{
			name:        "all fields",
			date:        "2024-03-15",
			description: "Electric Bill",
			docID:       "INV-123",
			ext:         ".pdf",
			want:        "2024-03-15_Electric_Bill_INV-123.pdf",
		},
		{
			name:        "no date",
			description: "Electric Bill",
			ext:         ".pdf",
			want:        "Electric_Bill.pdf",
		},
		{
			name:        "counter suffix",
			date:        "2024-03-15",
			description: "Electric Bill",
			counter:     2,
			ext:         ".pdf",
			want:        "2024-03-15_Electric_Bill_v2.pdf",
		},
		{
			name:        "receipt with counter",
			date:        "2024-07-12",
			description: "Walmart",
			docID:       "Grocery",
			counter:     1,
			ext:         ".jpg",
			receipt:     true,
			want:        "2024-07-12_Walmart_Grocery_v1.jpg",
		},
		{
			name:        "literal NONE id omitted",
			description: "Letter",
			docID:       "NONE",
			ext:         ".png",
			want:        "Letter.png",
		},
		{
			name:        "path separators neutralized",
			description: "A/B Test",
			ext:         ".pdf",
			want:        "A-B_Test.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.date, tt.description, tt.docID, tt.counter, tt.ext, tt.receipt)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate("2024-01-01", "Bank Statement", "ACC-9", 3, ".pdf", false)
	b := Generate("2024-01-01", "Bank Statement", "ACC-9", 3, ".pdf", false)
	assert.Equal(t, a, b)
}

func TestGenerate_LengthBound(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := Generate("2024-01-01", long, long, 12, ".jpeg", false)

	assert.Equal(t, MaxLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, ".jpeg"))
}

func TestGenerate_MultiByteStaysUnderByteLimit(t *testing.T) {
	got := Generate("", strings.Repeat("ü", 150), "", 0, ".pdf", false)

	assert.LessOrEqual(t, len(got), maxBytes)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestGenerate_CountersDistinctAtByteLimit(t *testing.T) {
	desc := strings.Repeat("請", 50)
	id := strings.Repeat("書", 30)

	seen := make(map[string]int)
	for c := 0; c <= 12; c++ {
		got := Generate("2024-01-01", desc, id, c, ".pdf", false)
		assert.LessOrEqual(t, len(got), maxBytes)
		assert.True(t, utf8.ValidString(got))
		assert.True(t, strings.HasPrefix(got, "2024-01-01_"))
		assert.True(t, strings.HasSuffix(got, ".pdf"))
		if c > 0 {
			assert.True(t, strings.HasSuffix(got, "_v"+strconv.Itoa(c)+".pdf"), got)
		}
		prev, dup := seen[got]
		assert.False(t, dup, "counter %d repeats counter %d", c, prev)
		seen[got] = c
	}
}
