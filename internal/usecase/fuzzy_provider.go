package usecase

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/docrecon/docrecon/internal/domain"
)

// tokenSetScale discounts token-set agreement relative to a full-string match,
// so a description that is a subset of a longer catalog text never outranks
// an identical one.
const tokenSetScale = 0.95

// FuzzyProvider scores queries against the catalog corpus with normalized
// Levenshtein similarity. It runs locally and cannot fail.
type FuzzyProvider struct {
	metric *metrics.Levenshtein
}

// NewFuzzyProvider creates a new lexical similarity provider
func NewFuzzyProvider() *FuzzyProvider {
	return &FuzzyProvider{metric: metrics.NewLevenshtein()}
}

// Method returns the fuzzy method tag
func (p *FuzzyProvider) Method() domain.MatchMethod {
	return domain.MethodFuzzy
}

type corpusTokens struct {
	joined string
	tokens []string
}

// Rank returns, per query, the topN best scoring corpus entries. Ties keep
// snapshot order.
func (p *FuzzyProvider) Rank(ctx context.Context, queries []string, index *CatalogIndex, topN int) ([]ProviderResult, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	results := make([]ProviderResult, len(queries))
	if index == nil || index.Size() == 0 {
		for i := range results {
			results[i] = ProviderResult{Method: domain.MethodFuzzy}
		}
		return results, nil
	}

	// Tokenize the corpus once per batch, not once per query
	corpus := index.Corpus()
	prepared := make([]corpusTokens, len(corpus))
	for i, entry := range corpus {
		tokens := tokenize(entry.SearchText)
		prepared[i] = corpusTokens{joined: strings.Join(tokens, " "), tokens: tokens}
	}

	for qi, query := range queries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		queryTokens := tokenize(query)
		queryJoined := strings.Join(queryTokens, " ")

		candidates := make([]domain.MatchCandidate, 0, len(corpus))
		for ci, entry := range corpus {
			score := p.score(queryJoined, queryTokens, prepared[ci].joined, prepared[ci].tokens)
			if score <= 0 {
				continue
			}
			candidates = append(candidates, domain.MatchCandidate{
				Item:   entry.Item,
				Score:  score,
				Method: domain.MethodFuzzy,
			})
		}

		// Stable sort keeps corpus (snapshot) order among equal scores
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Score > candidates[j].Score
		})
		if len(candidates) > topN {
			candidates = candidates[:topN]
		}

		results[qi] = ProviderResult{Candidates: candidates, Method: domain.MethodFuzzy}
	}

	return results, nil
}

// Score compares two free-text strings and returns a similarity in [0,1].
func (p *FuzzyProvider) Score(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	return p.score(strings.Join(ta, " "), ta, strings.Join(tb, " "), tb)
}

// score is the maximum of the plain ratio and the discounted token-set ratio.
func (p *FuzzyProvider) score(aJoined string, aTokens []string, bJoined string, bTokens []string) float64 {
	if aJoined == "" || bJoined == "" {
		return 0
	}
	if aJoined == bJoined {
		return 1
	}

	ratio := p.similarity(aJoined, bJoined)
	tokenSet := tokenSetScale * p.tokenSetRatio(aTokens, bTokens)
	return max(ratio, tokenSet)
}

// tokenSetRatio compares the shared tokens against each side's full token
// set, so word order and extra words on one side matter less.
func (p *FuzzyProvider) tokenSetRatio(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	var shared, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	slices.Sort(shared)
	slices.Sort(onlyA)
	slices.Sort(onlyB)

	base := strings.Join(shared, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := p.similarity(withA, withB)
	if base != "" {
		best = max(best, p.similarity(base, withA), p.similarity(base, withB))
	}
	return best
}

func (p *FuzzyProvider) similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, p.metric)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
