// Package engine drives the three classification passes over a batch of
// transactions: cache, matcher, rule-mapping, and inference in order, with
// per-transaction isolation and forward-only status transitions.
package engine

import (
	"context"

	"github.com/oakmere/shoebox/internal/llm"
	"github.com/oakmere/shoebox/internal/match"
	"github.com/oakmere/shoebox/internal/model"
)

// InferenceClient is the external judgment provider. *llm.Classifier
// implements it; tests supply a mock.
type InferenceClient interface {
	IdentifyPayee(ctx context.Context, req llm.PayeeRequest) (llm.PayeeResponse, error)
	AssignCategory(ctx context.Context, req llm.CategoryRequest) (llm.CategoryResponse, error)
	ClassifyTax(ctx context.Context, req llm.TaxRequest) (llm.TaxResponse, error)
}

// PriorMatcher finds a reusable prior classification for a normalized key.
type PriorMatcher interface {
	FindPrior(ctx context.Context, clientID string, pass model.PassType, key string) (*match.Match, error)
}
