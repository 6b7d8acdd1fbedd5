// Package llm wraps the external inference service behind per-pass methods
// with rate limiting, bounded retries, and strict response validation.
package llm

import (
	"context"

	"github.com/oakmere/shoebox/internal/model"
)

// Client defines the interface for inference providers. Implementations send
// one prompt and return the raw model output; schema validation happens in
// the classifier layer.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// PayeeRequest is the Pass 1 inference input.
type PayeeRequest struct {
	Profile     model.ClientProfile
	Description string
	Enrichment  string // optional vendor-lookup context
	Amount      float64
}

// PayeeResponse is the schema-validated Pass 1 output.
type PayeeResponse struct {
	Payee               string `json:"payee"`
	BusinessDescription string `json:"business_description"`
	CategoryHint        string `json:"category_hint"`
	Confidence          string `json:"confidence"`
	Ambiguous           bool   `json:"ambiguous"`
}

// CategoryRequest is the Pass 2 inference input.
type CategoryRequest struct {
	Profile             model.ClientProfile
	Description         string
	Payee               string
	BusinessDescription string
	CategoryHint        string
	Categories          []string
	Amount              float64
}

// CategoryResponse is the schema-validated Pass 2 output.
type CategoryResponse struct {
	GeneralCategory string `json:"general_category"`
	Confidence      string `json:"confidence"`
	Reasoning       string `json:"reasoning"`
}

// TaxRequest is the Pass 3 inference input.
type TaxRequest struct {
	Profile             model.ClientProfile
	Description         string
	Payee               string
	BusinessDescription string
	GeneralCategory     string
	TaxCategories       []string
	Amount              float64
}

// TaxResponse is the schema-validated Pass 3 output.
type TaxResponse struct {
	TaxCategory        string `json:"tax_category"`
	Worksheet          string `json:"worksheet"`
	Confidence         string `json:"confidence"`
	Reasoning          string `json:"reasoning"`
	OpenQuestions      string `json:"open_questions"`
	BusinessPercentage int    `json:"business_percentage"`
}
