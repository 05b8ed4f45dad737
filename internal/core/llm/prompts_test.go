package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptsRender(t *testing.T) {
	p := DefaultPrompts()

	doc, err := p.Render("scan <01> & co.pdf", false)
	require.NoError(t, err)
	assert.Contains(t, doc, "Original filename: scan <01> & co.pdf")
	assert.Contains(t, doc, "Description: [short description]")

	receipt, err := p.Render("r.jpg", true)
	require.NoError(t, err)
	assert.Contains(t, receipt, "Store/Merchant name")
	assert.Contains(t, receipt, "Original filename: r.jpg")
}

func TestPromptsRender_Custom(t *testing.T) {
	p := Prompts{Document: "Name: {{filename}}"}

	out, err := p.Render("a.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, "Name: a.pdf", out)

	// Missing receipt template falls back to the default.
	out, err = p.Render("a.pdf", true)
	require.NoError(t, err)
	assert.Contains(t, out, "Analyze this receipt")
}

func TestPromptsRender_BadTemplate(t *testing.T) {
	p := Prompts{Document: "{{#filename}}"}

	_, err := p.Render("a.pdf", false)
	assert.Error(t, err)
}
