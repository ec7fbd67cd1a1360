package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrEmbeddingsNotLoaded is returned when the similarity service has no reference embeddings
	ErrEmbeddingsNotLoaded = errors.New("similarity service has no reference embeddings loaded")

	// ErrSimilarityFailure is returned when a similarity service request fails
	ErrSimilarityFailure = errors.New("similarity service request failed")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrCorruptSnapshot is returned when a catalog snapshot cannot be indexed
	ErrCorruptSnapshot = errors.New("corrupt catalog snapshot")

	// ErrDuplicateKey is returned by writers when an item key already exists
	ErrDuplicateKey = errors.New("duplicate item key")

	// ErrPersistenceFailure is returned when reading or writing the catalog fails
	ErrPersistenceFailure = errors.New("persistence request failed")

	// ErrOrderNotFound is returned when a purchase order does not exist
	ErrOrderNotFound = errors.New("purchase order not found")
)
