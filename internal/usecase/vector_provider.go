package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/metrics"
)

// DefaultSimilarityTimeout bounds the batched similarity call
const DefaultSimilarityTimeout = 10 * time.Second

// VectorProvider delegates ranking to the external embedding similarity
// service with a single batched call.
type VectorProvider struct {
	client  domain.SimilarityClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewVectorProvider creates a provider backed by the given similarity client
func NewVectorProvider(client domain.SimilarityClient, timeout time.Duration, logger *zap.Logger) *VectorProvider {
	if timeout <= 0 {
		timeout = DefaultSimilarityTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorProvider{client: client, timeout: timeout, logger: logger}
}

// Method returns the vector method tag
func (p *VectorProvider) Method() domain.MatchMethod {
	return domain.MethodVector
}

// Rank sends all queries in one request. Any failure of the service degrades
// every query to an empty result tagged domain.MethodError.
func (p *VectorProvider) Rank(ctx context.Context, queries []string, _ *CatalogIndex, topN int) ([]ProviderResult, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.client.Match(callCtx, queries, topN)
	if err == nil && len(raw) != len(queries) {
		err = fmt.Errorf("%w: got %d results for %d descriptions", domain.ErrSimilarityFailure, len(raw), len(queries))
	}
	if err != nil {
		// The caller gave up; don't pretend this is a provider outage
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		reason := "request_failed"
		if errors.Is(err, domain.ErrEmbeddingsNotLoaded) {
			reason = "embeddings_not_loaded"
		} else if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.ProviderFailuresTotal.WithLabelValues(string(domain.MethodVector), reason).Inc()
		p.logger.Warn("vector similarity unavailable, degrading to next tier",
			zap.Int("queries", len(queries)),
			zap.String("reason", reason),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return failedResults(len(queries), err), nil
	}

	results := make([]ProviderResult, len(queries))
	for i, r := range raw {
		// The service falls back to its own fuzzy search and says so
		method := r.Method
		if method == "" {
			method = domain.MethodVector
		}
		candidates := make([]domain.MatchCandidate, 0, len(r.Matches))
		for _, m := range r.Matches {
			candidateMethod := m.Method
			if candidateMethod == "" {
				candidateMethod = method
			}
			candidates = append(candidates, domain.MatchCandidate{
				Item:   m.Item,
				Score:  clamp01(m.Score),
				Method: candidateMethod,
			})
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].Score > candidates[b].Score
		})
		if len(candidates) > topN {
			candidates = candidates[:topN]
		}
		results[i] = ProviderResult{Candidates: candidates, Method: method}
	}

	p.logger.Debug("vector similarity batch completed",
		zap.Int("queries", len(queries)),
		zap.Duration("elapsed", time.Since(start)))

	return results, nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
