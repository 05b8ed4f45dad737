package llm

import (
	"fmt"

	"github.com/cbroglie/mustache"
)

// DefaultDocumentPrompt asks for the fields of a general document.
const DefaultDocumentPrompt = `Analyze this document and provide:

1. Date (YYYY-MM-DD format, or NONE if not visible)
2. Brief description (2-4 words maximum - be concise!)
3. Document ID/Reference number (invoice number, reference, policy number, etc. - or NONE if not visible)

Original filename: {{{filename}}}

The original filename may contain hints. Only use it to fill in missing details when the document itself is unclear.

Format your response EXACTLY as:
Date: [date]
Description: [short description]
ID: [document ID or NONE]

Examples:
Date: 2024-07-12
Description: Kwik Fit Invoice
ID: 147218533

Date: 2023-05-15
Description: Insurance Policy
ID: POL-2023-5678

Only extract what you actually see in the document.`

// DefaultReceiptPrompt asks for store name and item instead of a
// description and reference number.
const DefaultReceiptPrompt = `Analyze this receipt and provide:

1. Date (YYYY-MM-DD format, or NONE if not visible)
2. Store/Merchant name (the business that issued this receipt - be concise!)
3. Item description or transaction type (primary item purchased or service - or NONE if not visible)

Original filename: {{{filename}}}

The original filename may contain hints. Only use it to fill in missing details when the receipt itself is unclear.

Format your response EXACTLY as:
Date: [date]
Description: [store/merchant name]
ID: [item description or NONE]

Examples:
Date: 2024-07-12
Description: Walmart
ID: Grocery

Date: 2023-05-15
Description: Shell
ID: Fuel

Only extract what you actually see in the receipt.`

// Prompts holds the mustache templates for both analysis modes. The only
// variable is {{filename}}.
type Prompts struct {
	Document string
	Receipt  string
}

// DefaultPrompts returns the built-in templates
func DefaultPrompts() Prompts {
	return Prompts{Document: DefaultDocumentPrompt, Receipt: DefaultReceiptPrompt}
}

// Render fills in the template for the requested mode
func (p Prompts) Render(filename string, receipt bool) (string, error) {
	tmpl := p.Document
	if receipt {
		tmpl = p.Receipt
	}
	if tmpl == "" {
		tmpl = DefaultPrompts().Document
		if receipt {
			tmpl = DefaultPrompts().Receipt
		}
	}

	out, err := mustache.Render(tmpl, map[string]any{"filename": filename})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}
