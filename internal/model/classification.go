// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// Confidence is the categorical certainty attached to a classification field.
type Confidence string

// Confidence levels, ordered low to high.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank returns an ordinal for confidence comparison. Unknown values rank
// below low so they never overwrite cached data.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether c is one of the three defined levels.
func (c Confidence) Valid() bool {
	return c.Rank() > 0
}

// Worksheet is the tax-form bucket an expense is reported under.
type Worksheet string

// Worksheet values. Personal is a first-class stored value, not an
// export-time filter.
const (
	Worksheet6A         Worksheet = "6A"
	WorksheetAuto       Worksheet = "Auto"
	WorksheetHomeOffice Worksheet = "HomeOffice"
	WorksheetPersonal   Worksheet = "Personal"
	WorksheetNone       Worksheet = "None"
)

// Valid reports whether w is one of the five enumerated worksheets.
func (w Worksheet) Valid() bool {
	switch w {
	case Worksheet6A, WorksheetAuto, WorksheetHomeOffice, WorksheetPersonal, WorksheetNone:
		return true
	default:
		return false
	}
}

// Business reports whether the worksheet carries business use.
func (w Worksheet) Business() bool {
	switch w {
	case Worksheet6A, WorksheetAuto, WorksheetHomeOffice:
		return true
	default:
		return false
	}
}

// SourceOfTruth records the provenance of a classification decision.
type SourceOfTruth string

// Provenance values.
const (
	SourceCache     SourceOfTruth = "cache"
	SourceMatched   SourceOfTruth = "matched"
	SourceMapped    SourceOfTruth = "mapped"
	SourceInference SourceOfTruth = "inference"
	SourceManual    SourceOfTruth = "manual"
)

// PassType identifies one stage of the three-stage pipeline.
type PassType string

// Pipeline passes in execution order.
const (
	PassPayee    PassType = "payee"
	PassCategory PassType = "category"
	PassTax      PassType = "tax"
)

// ClassificationResult holds the pipeline's output for one transaction. It is
// created empty when the transaction enters the pipeline and updated, never
// replaced, by each pass.
type ClassificationResult struct {
	ClassifiedAt        time.Time
	TransactionID       string
	ClientID            string
	NormalizedKey       string
	Payee               string
	BusinessDescription string
	GeneralCategory     string
	TaxCategory         string
	Reasoning           string
	OpenQuestions       string
	FailedPass          PassType
	FailureReason       string
	PayeeConfidence     Confidence
	Confidence          Confidence
	Worksheet           Worksheet
	SourceOfTruth       SourceOfTruth
	Status              Status
	BusinessPercentage  int
}

// Validate checks the worksheet/business-percentage invariants that every
// finalized result must satisfy.
func (r *ClassificationResult) Validate() error {
	if !r.Worksheet.Valid() {
		return fmt.Errorf("invalid worksheet %q", r.Worksheet)
	}
	if r.BusinessPercentage < 0 || r.BusinessPercentage > 100 {
		return fmt.Errorf("business percentage %d out of range [0,100]", r.BusinessPercentage)
	}
	if r.Worksheet == WorksheetPersonal && r.BusinessPercentage != 0 {
		return fmt.Errorf("personal worksheet requires business percentage 0, got %d", r.BusinessPercentage)
	}
	if r.BusinessPercentage > 0 && !r.Worksheet.Business() {
		return fmt.Errorf("business percentage %d requires a business worksheet, got %q", r.BusinessPercentage, r.Worksheet)
	}
	return nil
}

// PartialResult is the optional-field subset of a classification that a single
// pass produces and the cache stores. Absent string fields are empty; an
// absent business percentage is nil because zero is meaningful.
type PartialResult struct {
	BusinessPercentage  *int              `json:"business_percentage,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
	Payee               string            `json:"payee,omitempty"`
	BusinessDescription string            `json:"business_description,omitempty"`
	GeneralCategory     string            `json:"general_category,omitempty"`
	TaxCategory         string            `json:"tax_category,omitempty"`
	Reasoning           string            `json:"reasoning,omitempty"`
	Worksheet           Worksheet         `json:"worksheet,omitempty"`
	Confidence          Confidence        `json:"confidence,omitempty"`
}

// Empty reports whether the partial carries no classification fields.
func (p *PartialResult) Empty() bool {
	return p.Payee == "" && p.BusinessDescription == "" && p.GeneralCategory == "" &&
		p.TaxCategory == "" && p.Worksheet == "" && p.BusinessPercentage == nil
}
