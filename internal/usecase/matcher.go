package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/metrics"
)

// Classification thresholds, shared by every similarity tier so providers
// stay interchangeable.
const (
	MatchedThreshold   = 0.8
	SuggestedThreshold = 0.6
)

// MatcherConfig holds configuration for the tiered matcher
type MatcherConfig struct {
	TopN int
}

// Matcher classifies extracted items: exact key first, then each similarity
// tier in order until one yields a usable candidate.
type Matcher struct {
	tiers  []SimilarityProvider
	topN   int
	logger *zap.Logger
}

// NewMatcher creates a matcher. Tiers run in the given order; nil tiers are skipped.
func NewMatcher(config MatcherConfig, logger *zap.Logger, tiers ...SimilarityProvider) *Matcher {
	topN := config.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	active := make([]SimilarityProvider, 0, len(tiers))
	for _, t := range tiers {
		if t != nil {
			active = append(active, t)
		}
	}

	return &Matcher{tiers: active, topN: topN, logger: logger}
}

// classifyScore maps a similarity score to a verdict status
func classifyScore(score float64) (domain.MatchStatus, bool) {
	switch {
	case score >= MatchedThreshold:
		return domain.StatusMatched, true
	case score >= SuggestedThreshold:
		return domain.StatusSuggested, true
	default:
		return domain.StatusUnmatched, false
	}
}

// Classify returns one verdict per item, in input order. It only fails when
// ctx is cancelled; provider failures degrade to the next tier.
func (m *Matcher) Classify(ctx context.Context, items []domain.ExtractedLineItem, index *CatalogIndex) ([]domain.MatchVerdict, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: nil catalog index", domain.ErrInvalidRequest)
	}

	verdicts := make([]domain.MatchVerdict, len(items))
	decided := make([]bool, len(items))
	pending := make([]int, 0, len(items))

	for i, item := range items {
		if item.Key != "" {
			if hit, ok := index.Lookup(item.Key); ok {
				matched := hit
				verdicts[i] = domain.MatchVerdict{
					Status:      domain.StatusAlreadyExists,
					Confidence:  1.0,
					Method:      domain.MethodKey,
					MatchedItem: &matched,
					Attempts:    []domain.TierAttempt{{Method: domain.MethodKey, BestScore: 1.0}},
				}
				decided[i] = true
				continue
			}
			verdicts[i].Attempts = append(verdicts[i].Attempts, domain.TierAttempt{
				Method: domain.MethodKey,
				Reason: "key not in catalog",
			})
		}

		if item.Malformed || item.Description == "" {
			// Nothing to compare; leave for the unmatched pass
			continue
		}
		pending = append(pending, i)
	}

	for _, tier := range m.tiers {
		if len(pending) == 0 {
			break
		}

		queries := make([]string, len(pending))
		for qi, idx := range pending {
			queries[qi] = items[idx].Description
		}

		results, err := tier.Rank(ctx, queries, index, m.topN)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("similarity tier failed", zap.String("tier", string(tier.Method())), zap.Error(err))
			results = failedResults(len(queries), err)
		}
		if len(results) != len(queries) {
			m.logger.Warn("similarity tier returned misaligned results",
				zap.String("tier", string(tier.Method())),
				zap.Int("queries", len(queries)),
				zap.Int("results", len(results)))
			results = failedResults(len(queries), fmt.Errorf("%w: misaligned results", domain.ErrSimilarityFailure))
		}

		next := make([]int, 0, len(pending))
		for qi, idx := range pending {
			result := results[qi]
			attempt := domain.TierAttempt{Method: result.Method}
			if attempt.Method == "" {
				attempt.Method = tier.Method()
			}

			best, ok := result.Best()
			switch {
			case result.Err != nil:
				attempt.Reason = result.Err.Error()
			case !ok:
				attempt.Reason = "no candidates"
			default:
				attempt.BestScore = best.Score
			}

			if ok {
				if status, usable := classifyScore(best.Score); usable {
					matched := best.Item
					verdicts[idx].Status = status
					verdicts[idx].Confidence = best.Score
					verdicts[idx].Method = best.Method
					if verdicts[idx].Method == "" {
						verdicts[idx].Method = attempt.Method
					}
					verdicts[idx].MatchedItem = &matched
					verdicts[idx].Attempts = append(verdicts[idx].Attempts, attempt)
					decided[idx] = true
					continue
				}
				attempt.Reason = "below threshold"
			}

			verdicts[idx].Attempts = append(verdicts[idx].Attempts, attempt)
			next = append(next, idx)
		}
		pending = next
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range verdicts {
		if !decided[i] {
			verdicts[i].Status = domain.StatusUnmatched
			verdicts[i].Confidence = 0
			verdicts[i].Method = domain.MethodNone
			verdicts[i].MatchedItem = nil
		}
		metrics.VerdictsTotal.WithLabelValues(string(verdicts[i].Status), string(verdicts[i].Method)).Inc()
	}

	return verdicts, nil
}
