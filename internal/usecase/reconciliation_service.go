package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/metrics"
)

// Source selects the reference set an extracted batch is reconciled against
type Source string

const (
	SourceCatalog        Source = "catalog"
	SourcePurchaseOrders Source = "purchase_orders"
)

// ParseSource converts a wire value into a Source; empty means catalog.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceCatalog:
		return SourceCatalog, nil
	case SourcePurchaseOrders:
		return SourcePurchaseOrders, nil
	}
	return "", fmt.Errorf("%w: unknown source %q", domain.ErrInvalidRequest, s)
}

const snapshotCacheKey = "catalog:snapshot"

// ReconciliationServiceConfig holds configuration for the reconciliation service
type ReconciliationServiceConfig struct {
	SnapshotTTL       time.Duration
	StoreTimeout      time.Duration
	SimilarityTimeout time.Duration
	RefreshTimeout    time.Duration
	TopN              int
	InsertStatuses    []domain.MatchStatus
	EnableFuzzy       bool
}

// ReconcileRequest is one batch of extracted items to classify
type ReconcileRequest struct {
	Items   []domain.ExtractedLineItem
	Source  Source
	OrderNo string
}

// ReconcileResult is the classified batch. Items is aligned with the request.
type ReconcileResult struct {
	RunID         string                     `json:"runId"`
	Source        Source                     `json:"source"`
	Items         []domain.AnnotatedItem     `json:"items"`
	Plan          *domain.ReconciliationPlan `json:"plan"`
	DuplicateKeys []string                   `json:"duplicateCatalogKeys,omitempty"`
}

// ReconciliationService wires persistence, caching and the matching engine.
type ReconciliationService struct {
	catalog      domain.CatalogRepository
	orders       domain.PurchaseOrderRepository
	cache        domain.CacheRepository
	matcher      *Matcher
	reconciler   *Reconciler
	orderPlanner *Reconciler
	normalizer   *LineItemNormalizer
	snapshotTTL  time.Duration
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewReconciliationService creates a new reconciliation service with dependencies.
// similarity, notifier and cache may be nil.
func NewReconciliationService(
	catalog domain.CatalogRepository,
	orders domain.PurchaseOrderRepository,
	cache domain.CacheRepository,
	similarity domain.SimilarityClient,
	notifier domain.RefreshNotifier,
	config ReconciliationServiceConfig,
	logger *zap.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}

	var tiers []SimilarityProvider
	if similarity != nil {
		tiers = append(tiers, NewVectorProvider(similarity, config.SimilarityTimeout, logger))
	}
	if config.EnableFuzzy {
		tiers = append(tiers, NewFuzzyProvider())
	}

	snapshotTTL := config.SnapshotTTL
	if snapshotTTL == 0 {
		snapshotTTL = 5 * time.Minute
	}
	storeTimeout := config.StoreTimeout
	if storeTimeout == 0 {
		storeTimeout = 10 * time.Second
	}

	return &ReconciliationService{
		catalog:    catalog,
		orders:     orders,
		cache:      cache,
		matcher:    NewMatcher(MatcherConfig{TopN: config.TopN}, logger, tiers...),
		reconciler: NewReconciler(ReconcilerConfig{
			InsertStatuses: config.InsertStatuses,
			RefreshTimeout: config.RefreshTimeout,
		}, notifier, logger),
		// Purchase order rows never reach the embedding collaborator
		orderPlanner: NewReconciler(ReconcilerConfig{
			InsertStatuses: config.InsertStatuses,
		}, nil, logger),
		normalizer:   NewLineItemNormalizer(),
		snapshotTTL:  snapshotTTL,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Normalizer exposes the line item normalizer used for raw extraction records
func (s *ReconciliationService) Normalizer() *LineItemNormalizer {
	return s.normalizer
}

// Reconcile classifies a batch against the requested reference set.
// Flow: load snapshot (cached for the catalog) -> index -> classify -> plan
func (s *ReconciliationService) Reconcile(ctx context.Context, request *ReconcileRequest) (*ReconcileResult, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}
	source := request.Source
	if source == "" {
		source = SourceCatalog
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("source", string(source)))

	snapshot, err := s.loadSnapshot(ctx, source, request.OrderNo)
	if err != nil {
		return nil, err
	}

	index, err := NewCatalogIndex(snapshot)
	if err != nil {
		return nil, err
	}
	if dups := index.DuplicateKeys(); len(dups) > 0 {
		logger.Warn("reference snapshot has duplicate keys, first occurrence wins",
			zap.Int("count", len(dups)),
			zap.Strings("keys", dups))
	}

	verdicts, err := s.matcher.Classify(ctx, request.Items, index)
	if err != nil {
		return nil, err
	}

	annotated := make([]domain.AnnotatedItem, len(request.Items))
	for i := range request.Items {
		annotated[i] = domain.AnnotatedItem{Item: request.Items[i], Verdict: verdicts[i]}
	}

	plan := s.reconciler.Plan(annotated)

	metrics.ReconcileDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	logger.Info("reconciled batch",
		zap.Int("items", len(request.Items)),
		zap.Int("catalog_size", index.Size()),
		zap.Int("eligible", plan.Summary.Eligible),
		zap.Int("skipped_existing", plan.Summary.SkippedExisting),
		zap.Int("skipped_duplicate", plan.Summary.SkippedDuplicate),
		zap.Duration("elapsed", time.Since(start)))

	return &ReconcileResult{
		RunID:         runID,
		Source:        source,
		Items:         annotated,
		Plan:          plan,
		DuplicateKeys: index.DuplicateKeys(),
	}, nil
}

// CommitToCatalog reconciles items against the master catalog and inserts
// the eligible ones in a single transaction.
func (s *ReconciliationService) CommitToCatalog(ctx context.Context, items []domain.ExtractedLineItem) (*ReconcileResult, *domain.CommitResult, error) {
	result, err := s.Reconcile(ctx, &ReconcileRequest{Items: items, Source: SourceCatalog})
	if err != nil {
		return nil, nil, err
	}

	commit, err := s.commit(ctx, s.reconciler, result.Plan, s.catalog)
	if err != nil {
		return result, nil, err
	}

	if commit.Summary.Inserted > 0 {
		s.invalidateSnapshot(ctx)
	}
	return result, commit, nil
}

// SavePurchaseOrder reconciles the order's items against prior purchase
// order history and saves the order with its eligible items.
func (s *ReconciliationService) SavePurchaseOrder(ctx context.Context, order *domain.PurchaseOrder, items []domain.ExtractedLineItem) (*ReconcileResult, *domain.CommitResult, error) {
	if order == nil || order.OrderNo == "" {
		return nil, nil, fmt.Errorf("%w: purchase order number is required", domain.ErrInvalidRequest)
	}
	if err := s.normalizer.validate.Struct(order); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, describeValidation(err))
	}

	result, err := s.Reconcile(ctx, &ReconcileRequest{Items: items, Source: SourcePurchaseOrders})
	if err != nil {
		return nil, nil, err
	}

	writer := &orderWriter{repo: s.orders, header: *order}
	commit, err := s.commit(ctx, s.orderPlanner, result.Plan, writer)
	if err != nil {
		return result, nil, err
	}

	// The header is saved even when every item was already ordered before
	if len(result.Plan.ToInsert) == 0 {
		storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
		if _, err := writer.InsertItems(storeCtx, nil); err != nil {
			return result, nil, wrapPersistence(err)
		}
	}
	return result, commit, nil
}

// ListCatalog returns the current master catalog, bypassing the cache
func (s *ReconciliationService) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.catalog.ListItems(storeCtx)
}

// ListOrderItems returns the items of one saved purchase order
func (s *ReconciliationService) ListOrderItems(ctx context.Context, orderNo string) ([]domain.CatalogItem, error) {
	if orderNo == "" {
		return nil, domain.ErrInvalidRequest
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.orders.ListOrderItems(storeCtx, orderNo)
}

// ListPurchaseOrders returns saved purchase order headers, newest first
func (s *ReconciliationService) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	if s.orders == nil {
		return nil, fmt.Errorf("%w: purchase order history is not configured", domain.ErrInvalidRequest)
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.orders.ListOrders(storeCtx)
}

func (s *ReconciliationService) commit(ctx context.Context, r *Reconciler, plan *domain.ReconciliationPlan, writer domain.ItemWriter) (*domain.CommitResult, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return r.Commit(storeCtx, plan, writer)
}

// loadSnapshot reads the reference set for source. Catalog snapshots go
// through the cache; purchase order history is always read fresh.
func (s *ReconciliationService) loadSnapshot(ctx context.Context, source Source, orderNo string) ([]domain.CatalogItem, error) {
	if source == SourcePurchaseOrders {
		if s.orders == nil {
			return nil, fmt.Errorf("%w: purchase order history is not configured", domain.ErrInvalidRequest)
		}
		storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
		items, err := s.orders.ListOrderItems(storeCtx, orderNo)
		if err != nil {
			return nil, wrapPersistence(err)
		}
		return items, nil
	}

	if cached, err := s.getFromCache(ctx); err == nil {
		metrics.SnapshotCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SnapshotCacheTotal.WithLabelValues("miss").Inc()

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	items, err := s.catalog.ListItems(storeCtx)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	if err := s.setInCache(ctx, items); err != nil {
		// Log but don't fail if caching fails
		s.logger.Debug("failed to cache catalog snapshot", zap.Error(err))
	}
	return items, nil
}

// getFromCache retrieves the catalog snapshot from cache
func (s *ReconciliationService) getFromCache(ctx context.Context) ([]domain.CatalogItem, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}
	data, err := s.cache.Get(ctx, snapshotCacheKey)
	if err != nil {
		return nil, err
	}

	var items []domain.CatalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return items, nil
}

// setInCache stores the catalog snapshot in cache
func (s *ReconciliationService) setInCache(ctx context.Context, items []domain.CatalogItem) error {
	if s.cache == nil {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, snapshotCacheKey, data, s.snapshotTTL)
}

func (s *ReconciliationService) invalidateSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, snapshotCacheKey); err != nil {
		s.logger.Warn("failed to invalidate catalog snapshot cache", zap.Error(err))
	}
}

func wrapPersistence(err error) error {
	if errors.Is(err, domain.ErrPersistenceFailure) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}

// orderWriter saves a purchase order header together with the eligible items
type orderWriter struct {
	repo   domain.PurchaseOrderRepository
	header domain.PurchaseOrder
}

func (w *orderWriter) InsertItems(ctx context.Context, items []domain.CatalogItem) (*domain.InsertResult, error) {
	if w.repo == nil {
		return nil, fmt.Errorf("%w: purchase order history is not configured", domain.ErrInvalidRequest)
	}
	order := w.header
	order.Items = items
	return w.repo.SaveOrder(ctx, &order)
}
