package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/docrecon/docrecon/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu        sync.Mutex
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	deleted   []string
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.data, key)
	return nil
}

// MockSimilarityClient is a mock implementation of domain.SimilarityClient.
// scores maps a description to the (catalog key, score) it should return.
type MockSimilarityClient struct {
	catalog map[string]domain.CatalogItem
	scores  map[string]mockScore
	err     error
	calls   int
	queries [][]string
}

type mockScore struct {
	key   string
	score float64
}

func NewMockSimilarityClient(catalog []domain.CatalogItem) *MockSimilarityClient {
	byKey := make(map[string]domain.CatalogItem, len(catalog))
	for _, item := range catalog {
		byKey[item.Key] = item
	}
	return &MockSimilarityClient{catalog: byKey, scores: make(map[string]mockScore)}
}

func (m *MockSimilarityClient) WithScore(description, key string, score float64) *MockSimilarityClient {
	m.scores[description] = mockScore{key: key, score: score}
	return m
}

func (m *MockSimilarityClient) Match(ctx context.Context, descriptions []string, topN int) ([]domain.SimilarityResult, error) {
	m.calls++
	m.queries = append(m.queries, append([]string(nil), descriptions...))
	if m.err != nil {
		return nil, m.err
	}

	results := make([]domain.SimilarityResult, len(descriptions))
	for i, d := range descriptions {
		results[i].Method = domain.MethodVector
		if s, ok := m.scores[d]; ok {
			results[i].Matches = []domain.MatchCandidate{{
				Item:   m.catalog[s.key],
				Score:  s.score,
				Method: domain.MethodVector,
			}}
		}
	}
	return results, nil
}

// MockProvider is a scripted SimilarityProvider that records every query
type MockProvider struct {
	method  domain.MatchMethod
	scores  map[string]MockCandidate
	err     error
	calls   int
	queries []string
}

type MockCandidate struct {
	Item  domain.CatalogItem
	Score float64
}

func NewMockProvider(method domain.MatchMethod) *MockProvider {
	return &MockProvider{method: method, scores: make(map[string]MockCandidate)}
}

func (m *MockProvider) With(query string, item domain.CatalogItem, score float64) *MockProvider {
	m.scores[query] = MockCandidate{Item: item, Score: score}
	return m
}

func (m *MockProvider) Method() domain.MatchMethod {
	return m.method
}

func (m *MockProvider) Rank(ctx context.Context, queries []string, index *CatalogIndex, topN int) ([]ProviderResult, error) {
	m.calls++
	m.queries = append(m.queries, queries...)
	if m.err != nil {
		return nil, m.err
	}
	results := make([]ProviderResult, len(queries))
	for i, q := range queries {
		results[i].Method = m.method
		if c, ok := m.scores[q]; ok {
			results[i].Candidates = []domain.MatchCandidate{{Item: c.Item, Score: c.Score, Method: m.method}}
		}
	}
	return results, nil
}

// MockCatalogRepository is an in-memory domain.CatalogRepository with a
// case-insensitive unique key constraint.
type MockCatalogRepository struct {
	mu        sync.Mutex
	items     []domain.CatalogItem
	listError error
	insertErr error
	listCalls int
	inserts   [][]domain.CatalogItem
}

func NewMockCatalogRepository(items ...domain.CatalogItem) *MockCatalogRepository {
	return &MockCatalogRepository{items: items}
}

func (m *MockCatalogRepository) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listError != nil {
		return nil, m.listError
	}
	return append([]domain.CatalogItem(nil), m.items...), nil
}

func (m *MockCatalogRepository) InsertItems(ctx context.Context, items []domain.CatalogItem) (*domain.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts = append(m.inserts, items)
	if m.insertErr != nil {
		return nil, m.insertErr
	}

	existing := make(map[string]bool, len(m.items))
	for _, item := range m.items {
		if item.Key != "" {
			existing[strings.ToLower(item.Key)] = true
		}
	}

	result := &domain.InsertResult{}
	for i, item := range items {
		k := strings.ToLower(item.Key)
		if k != "" && existing[k] {
			result.Collisions = append(result.Collisions, i)
			continue
		}
		if k != "" {
			existing[k] = true
		}
		m.items = append(m.items, item)
		result.Inserted = append(result.Inserted, item)
	}
	return result, nil
}

// MockOrderRepository is an in-memory domain.PurchaseOrderRepository
type MockOrderRepository struct {
	orders []domain.PurchaseOrder
	saved  []domain.PurchaseOrder
}

func (m *MockOrderRepository) ListOrderItems(ctx context.Context, orderNo string) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	found := orderNo == ""
	for _, o := range m.orders {
		if orderNo == "" || o.OrderNo == orderNo {
			found = true
			items = append(items, o.Items...)
		}
	}
	if !found {
		return nil, domain.ErrOrderNotFound
	}
	return items, nil
}

func (m *MockOrderRepository) SaveOrder(ctx context.Context, order *domain.PurchaseOrder) (*domain.InsertResult, error) {
	m.saved = append(m.saved, *order)
	m.orders = append(m.orders, *order)
	return &domain.InsertResult{Inserted: order.Items}, nil
}

func (m *MockOrderRepository) ListOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	orders := make([]domain.PurchaseOrder, 0, len(m.orders))
	for i := len(m.orders) - 1; i >= 0; i-- {
		header := m.orders[i]
		header.Items = nil
		orders = append(orders, header)
	}
	return orders, nil
}

// MockNotifier is a mock implementation of domain.RefreshNotifier
type MockNotifier struct {
	mu       sync.Mutex
	err      error
	calls    int
	inserted []int
	ctxErr   error
}

func (m *MockNotifier) NotifyCatalogChanged(ctx context.Context, inserted int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.inserted = append(m.inserted, inserted)
	m.ctxErr = ctx.Err()
	return m.err
}

var errServiceDown = errors.New("connection refused")

func lineItem(key, description string) domain.ExtractedLineItem {
	return domain.ExtractedLineItem{Key: key, Description: description}
}

func catalogItem(key, description string) domain.CatalogItem {
	return domain.CatalogItem{ID: "id-" + key, Key: key, Description: description}
}
