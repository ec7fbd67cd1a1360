package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SimilarityResult is one entry of a batched similarity response, aligned
// with the submitted descriptions.
type SimilarityResult struct {
	Matches []MatchCandidate
	Method  MatchMethod
}

// SimilarityClient defines the interface for the external embedding similarity service
type SimilarityClient interface {
	Match(ctx context.Context, descriptions []string, topN int) ([]SimilarityResult, error)
}

// RefreshNotifier is told when new catalog rows were persisted so the
// embedding index can be rebuilt.
type RefreshNotifier interface {
	NotifyCatalogChanged(ctx context.Context, inserted int) error
}

// ItemWriter bulk-inserts new catalog rows in a single transaction.
type ItemWriter interface {
	InsertItems(ctx context.Context, items []CatalogItem) (*InsertResult, error)
}

// CatalogRepository defines the interface for master catalog persistence
type CatalogRepository interface {
	ItemWriter
	ListItems(ctx context.Context) ([]CatalogItem, error)
}

// PurchaseOrderRepository defines the interface for purchase order history
type PurchaseOrderRepository interface {
	// ListOrderItems returns items of one order, or of every order when orderNo is empty.
	ListOrderItems(ctx context.Context, orderNo string) ([]CatalogItem, error)
	SaveOrder(ctx context.Context, order *PurchaseOrder) (*InsertResult, error)
	// ListOrders returns order headers, newest first.
	ListOrders(ctx context.Context) ([]PurchaseOrder, error)
}
