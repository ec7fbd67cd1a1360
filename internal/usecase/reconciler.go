package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/metrics"
)

// DefaultRefreshTimeout bounds the refresh notification after a commit
const DefaultRefreshTimeout = 5 * time.Second

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// InsertStatuses restricts which verdicts may be inserted. Empty means
	// every status except already_exists.
	InsertStatuses []domain.MatchStatus
	RefreshTimeout time.Duration
}

// Reconciler turns an annotated batch into an insert plan and commits it.
type Reconciler struct {
	notifier       domain.RefreshNotifier
	insertable     map[domain.MatchStatus]bool
	refreshTimeout time.Duration
	logger         *zap.Logger
}

// NewReconciler creates a reconciler. notifier may be nil.
func NewReconciler(config ReconcilerConfig, notifier domain.RefreshNotifier, logger *zap.Logger) *Reconciler {
	var insertable map[domain.MatchStatus]bool
	if len(config.InsertStatuses) > 0 {
		insertable = make(map[domain.MatchStatus]bool, len(config.InsertStatuses))
		for _, s := range config.InsertStatuses {
			insertable[s] = true
		}
	}

	timeout := config.RefreshTimeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		notifier:       notifier,
		insertable:     insertable,
		refreshTimeout: timeout,
		logger:         logger,
	}
}

// Plan decides which annotated items are eligible for insertion. Order is
// preserved; within the batch the first occurrence of a key wins.
func (r *Reconciler) Plan(annotated []domain.AnnotatedItem) *domain.ReconciliationPlan {
	plan := &domain.ReconciliationPlan{
		ToInsert: make([]domain.AnnotatedItem, 0, len(annotated)),
		Skipped:  make([]domain.SkippedItem, 0),
	}
	plan.Summary.Total = len(annotated)

	seenKeys := make(map[string]bool)
	for _, a := range annotated {
		switch {
		case a.Verdict.Status == domain.StatusAlreadyExists:
			plan.Skipped = append(plan.Skipped, domain.SkippedItem{Item: a.Item, Reason: domain.SkipAlreadyExists})
			plan.Summary.SkippedExisting++
			continue
		case a.Item.Malformed || !r.isInsertable(a.Verdict.Status):
			plan.Skipped = append(plan.Skipped, domain.SkippedItem{Item: a.Item, Reason: domain.SkipNotInsertable})
			plan.Summary.SkippedOther++
			continue
		}

		if key := normalizeKey(a.Item.Key); key != "" {
			if seenKeys[key] {
				plan.Skipped = append(plan.Skipped, domain.SkippedItem{Item: a.Item, Reason: domain.SkipDuplicateInBatch})
				plan.Summary.SkippedDuplicate++
				continue
			}
			seenKeys[key] = true
		}

		plan.ToInsert = append(plan.ToInsert, a)
	}
	plan.Summary.Eligible = len(plan.ToInsert)

	return plan
}

func (r *Reconciler) isInsertable(status domain.MatchStatus) bool {
	if r.insertable == nil {
		return status != domain.StatusAlreadyExists
	}
	return r.insertable[status]
}

// Commit inserts the plan's eligible items in one call to writer. Key
// collisions reported by the writer become already_exists skips. After at
// least one insert the refresh notifier is signalled; its failure is logged
// and does not affect the result.
func (r *Reconciler) Commit(ctx context.Context, plan *domain.ReconciliationPlan, writer domain.ItemWriter) (*domain.CommitResult, error) {
	if plan == nil || writer == nil {
		return nil, domain.ErrInvalidRequest
	}

	result := &domain.CommitResult{
		Inserted: make([]domain.CatalogItem, 0, len(plan.ToInsert)),
		Skipped:  append(make([]domain.SkippedItem, 0, len(plan.Skipped)), plan.Skipped...),
		Summary:  plan.Summary,
	}
	if len(plan.ToInsert) == 0 {
		return result, nil
	}

	rows := make([]domain.CatalogItem, len(plan.ToInsert))
	for i, a := range plan.ToInsert {
		rows[i] = a.Item.ToCatalogItem()
	}

	inserted, err := writer.InsertItems(ctx, rows)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceFailure) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}

	for _, idx := range inserted.Collisions {
		if idx < 0 || idx >= len(plan.ToInsert) {
			continue
		}
		result.Skipped = append(result.Skipped, domain.SkippedItem{
			Item:   plan.ToInsert[idx].Item,
			Reason: domain.SkipAlreadyExists,
		})
		result.Summary.SkippedExisting++
	}
	result.Inserted = append(result.Inserted, inserted.Inserted...)
	result.Summary.Inserted = len(inserted.Inserted)

	metrics.CatalogInsertsTotal.WithLabelValues("inserted").Add(float64(len(inserted.Inserted)))
	metrics.CatalogInsertsTotal.WithLabelValues("collision").Add(float64(len(inserted.Collisions)))

	if len(inserted.Collisions) > 0 {
		r.logger.Info("persistence rejected colliding keys",
			zap.Int("collisions", len(inserted.Collisions)),
			zap.Int("inserted", len(inserted.Inserted)))
	}

	if result.Summary.Inserted > 0 {
		result.RefreshSignalled = r.signalRefresh(ctx, result.Summary.Inserted)
	}

	return result, nil
}

// signalRefresh tells the embedding collaborator about new rows. It never
// retries and never fails the commit.
func (r *Reconciler) signalRefresh(ctx context.Context, inserted int) bool {
	if r.notifier == nil {
		return false
	}

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.refreshTimeout)
	defer cancel()

	if err := r.notifier.NotifyCatalogChanged(refreshCtx, inserted); err != nil {
		metrics.RefreshSignalsTotal.WithLabelValues("failed").Inc()
		r.logger.Warn("failed to signal embedding refresh", zap.Int("inserted", inserted), zap.Error(err))
		return false
	}

	metrics.RefreshSignalsTotal.WithLabelValues("sent").Inc()
	r.logger.Debug("signalled embedding refresh", zap.Int("inserted", inserted))
	return true
}
