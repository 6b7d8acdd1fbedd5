// Package match reuses prior classifications so recurring vendors classify
// identically every time they recur.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/oakmere/shoebox/internal/common"
	"github.com/oakmere/shoebox/internal/model"
	"github.com/oakmere/shoebox/internal/normalize"
	"github.com/oakmere/shoebox/internal/service"
)

// DefaultSimilarityThreshold is the minimum fuzzy similarity accepted when no
// exact normalized-key match exists.
const DefaultSimilarityThreshold = 0.85

// Match is a reusable prior classification. Ambiguous is set when multiple
// equally-confident priors disagreed and the tie-break picked one; callers
// flag the transaction for review.
type Match struct {
	Prior     model.ClassificationResult
	Ambiguous bool
}

// Matcher searches a client's previously classified transactions.
type Matcher struct {
	storage   service.Storage
	logger    *slog.Logger
	threshold float64
}

// New creates a matcher over the given storage.
func New(storage service.Storage, logger *slog.Logger) *Matcher {
	return &Matcher{
		storage:   storage,
		logger:    logger,
		threshold: DefaultSimilarityThreshold,
	}
}

// FindPrior returns a prior classification for the client whose normalized
// key equals (preferred) or closely resembles the given key and whose status
// covers the requested pass. Returns nil when nothing reusable exists.
func (m *Matcher) FindPrior(ctx context.Context, clientID string, pass model.PassType, key string) (*Match, error) {
	if key == "" || key == normalize.EmptyKey {
		return nil, nil
	}

	priors, err := m.storage.GetPriorClassifications(ctx, clientID, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior classifications: %w", err)
	}
	if len(priors) == 0 {
		return nil, nil
	}

	candidates := filterExact(priors, key)
	if len(candidates) == 0 {
		candidates = m.filterFuzzy(priors, key)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Priors arrive most recent first; a stable sort by confidence keeps
	// recency as the secondary tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence.Rank() > candidates[j].Confidence.Rank()
	})

	best := candidates[0]
	ambiguous := false
	for _, other := range candidates[1:] {
		if other.Confidence.Rank() != best.Confidence.Rank() {
			break
		}
		if conflicts(pass, &best, &other) {
			ambiguous = true
			break
		}
	}

	if ambiguous {
		m.logger.Warn("ambiguous prior match, using most recent",
			"client_id", clientID,
			"pass", pass,
			"key", key,
			"candidates", len(candidates),
			"error", common.ErrAmbiguousMatch)
	}

	return &Match{Prior: best, Ambiguous: ambiguous}, nil
}

func filterExact(priors []model.ClassificationResult, key string) []model.ClassificationResult {
	var out []model.ClassificationResult
	for _, p := range priors {
		if p.NormalizedKey == key {
			out = append(out, p)
		}
	}
	return out
}

func (m *Matcher) filterFuzzy(priors []model.ClassificationResult, key string) []model.ClassificationResult {
	var out []model.ClassificationResult
	for _, p := range priors {
		if p.NormalizedKey == "" || p.NormalizedKey == normalize.EmptyKey {
			continue
		}
		if similarity(key, p.NormalizedKey) >= m.threshold {
			out = append(out, p)
		}
	}
	return out
}

// similarity is 1 - levenshtein/maxlen, in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// conflicts reports whether two priors disagree on the field set the pass
// copies forward.
func conflicts(pass model.PassType, a, b *model.ClassificationResult) bool {
	switch pass {
	case model.PassPayee:
		return a.Payee != b.Payee
	case model.PassCategory:
		return a.GeneralCategory != b.GeneralCategory
	case model.PassTax:
		return a.TaxCategory != b.TaxCategory ||
			a.Worksheet != b.Worksheet ||
			a.BusinessPercentage != b.BusinessPercentage
	default:
		return false
	}
}
