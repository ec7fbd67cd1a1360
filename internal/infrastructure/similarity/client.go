package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	maxBodyBytes      = 10 << 20
	maxErrorBodyBytes = 4 << 10
)

// ClientConfig holds configuration for the similarity service client
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryDelay        time.Duration
}

// Client handles communication with the embedding similarity service
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	logger      *zap.Logger
	debug       bool
}

// NewClient creates a new similarity service client
func NewClient(config ClientConfig, logger *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	// Zero means unlimited
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 10
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      config.APIKey,
		baseURL:     config.BaseURL,
		rateLimiter: rate.NewLimiter(limit, burst),
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		logger:      logger.Named("similarity"),
	}
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(msg string, fields ...zap.Field) {
	if c.debug {
		c.logger.Info(msg, fields...)
	}
}

// exponentialBackoff returns the wait before retrying after the given attempt
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// doRequest executes an HTTP POST request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DocRecon/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SimilarityRequestDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", domain.ErrSimilarityFailure, err)
	}
	metrics.SimilarityRequestDuration.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	return resp, nil
}

// post sends payload to endpoint, making up to attempts tries on transient
// failures, and returns the body of the first 200 response.
func (c *Client) post(ctx context.Context, endpoint string, payload any, attempts int) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(exponentialBackoff(c.retryDelay, attempt-1)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		resp, err := c.doRequest(ctx, endpoint, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("request failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			body, err := readLimitedBody(resp.Body, maxBodyBytes)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrSimilarityFailure, err)
			}
			return body, nil
		}

		body, _ := readLimitedBody(resp.Body, maxErrorBodyBytes)
		resp.Body.Close()

		var envelope errorResponse
		_ = json.Unmarshal(body, &envelope)
		if isEmbeddingsNotLoaded(envelope.Detail) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmbeddingsNotLoaded, envelope.Detail)
		}

		c.logger.Debug("service error",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		lastErr = fmt.Errorf("%w: status %d", domain.ErrSimilarityFailure, resp.StatusCode)

		// Retry on 5xx and 429 only
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, lastErr
		}
	}

	c.logger.Warn("all retries failed", zap.String("endpoint", endpoint), zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, lastErr
}

// Match ranks catalog rows for every description in a single request.
// Results are aligned with descriptions.
func (c *Client) Match(ctx context.Context, descriptions []string, topN int) ([]domain.SimilarityResult, error) {
	if len(descriptions) == 0 {
		return []domain.SimilarityResult{}, nil
	}
	c.debugLog("match request", zap.Int("descriptions", len(descriptions)), zap.Int("top_n", topN))

	body, err := c.post(ctx, "/match", matchRequest{Descriptions: descriptions, TopN: topN}, c.maxRetries)
	if err != nil {
		return nil, err
	}

	var wire []matchResult
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrSimilarityFailure, err)
	}
	if len(wire) != len(descriptions) {
		return nil, fmt.Errorf("%w: got %d results for %d descriptions", domain.ErrSimilarityFailure, len(wire), len(descriptions))
	}

	c.debugLog("match response", zap.Int("results", len(wire)))
	return MapToSimilarityResults(wire), nil
}

// Refresh asks the service to reload catalog rows and embeddings. It returns
// the number of rows the service now holds. Refresh is attempted once.
func (c *Client) Refresh(ctx context.Context) (int, error) {
	body, err := c.post(ctx, "/refresh", struct{}{}, 1)
	if err != nil {
		return 0, err
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: failed to decode response: %v", domain.ErrSimilarityFailure, err)
	}
	c.debugLog("refreshed", zap.String("status", resp.Status), zap.Int("count", resp.Count))
	return resp.Count, nil
}

// NotifyCatalogChanged implements domain.RefreshNotifier over POST /refresh
func (c *Client) NotifyCatalogChanged(ctx context.Context, inserted int) error {
	count, err := c.Refresh(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("similarity index refreshed", zap.Int("inserted", inserted), zap.Int("indexed", count))
	return nil
}
