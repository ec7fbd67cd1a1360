package usecase

import (
	"context"

	"github.com/docrecon/docrecon/internal/domain"
)

// DefaultTopN is how many candidates a provider returns per query unless configured otherwise
const DefaultTopN = 1

// ProviderResult holds the ranked candidates for one query. Method is the
// provider's tag, or domain.MethodError when the provider failed.
type ProviderResult struct {
	Candidates []domain.MatchCandidate
	Method     domain.MatchMethod
	Err        error
}

// Best returns the highest ranked candidate, if any.
func (r ProviderResult) Best() (domain.MatchCandidate, bool) {
	if len(r.Candidates) == 0 {
		return domain.MatchCandidate{}, false
	}
	return r.Candidates[0], true
}

// SimilarityProvider ranks catalog rows against a batch of query strings.
// Results are aligned with queries. Implementations degrade to empty results
// on their own failures and only return an error when ctx is done.
type SimilarityProvider interface {
	Method() domain.MatchMethod
	Rank(ctx context.Context, queries []string, index *CatalogIndex, topN int) ([]ProviderResult, error)
}

// failedResults builds one failure entry per query
func failedResults(n int, err error) []ProviderResult {
	results := make([]ProviderResult, n)
	for i := range results {
		results[i] = ProviderResult{Method: domain.MethodError, Err: err}
	}
	return results
}
