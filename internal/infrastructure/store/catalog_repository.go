package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
)

// CatalogRepository implements domain.CatalogRepository
type CatalogRepository struct {
	store *Store
}

// ListItems returns every catalog row in insertion order
func (r *CatalogRepository) ListItems(ctx context.Context) ([]domain.CatalogItem, error) {
	sb := r.store.flavor.NewSelectBuilder()
	sb.Select(catalogColumns...)
	sb.From("catalog_items")
	sb.OrderBy("seq").Asc()

	query, args := sb.Build()
	var rows []itemRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.store.logger.Error("failed to list catalog items", zap.Error(err))
		return nil, fmt.Errorf("%w: list catalog items: %v", domain.ErrPersistenceFailure, err)
	}

	items := make([]domain.CatalogItem, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

// InsertItems inserts items in one transaction. Items whose key already
// exists (case-insensitively) are skipped and reported as collisions; any
// other failure rolls the whole batch back.
func (r *CatalogRepository) InsertItems(ctx context.Context, items []domain.CatalogItem) (*domain.InsertResult, error) {
	result := &domain.InsertResult{
		Inserted: make([]domain.CatalogItem, 0, len(items)),
	}
	if len(items) == 0 {
		return result, nil
	}

	now := time.Now().UTC()
	err := r.store.withTx(ctx, func(tx *sqlx.Tx) error {
		for i, item := range items {
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.CreatedAt = now

			inserted, err := r.insertOne(ctx, tx, item)
			if err != nil {
				return err
			}
			if !inserted {
				result.Collisions = append(result.Collisions, i)
				continue
			}
			result.Inserted = append(result.Inserted, item)
		}
		return nil
	})
	if err != nil {
		r.store.logger.Error("failed to insert catalog items", zap.Int("count", len(items)), zap.Error(err))
		return nil, fmt.Errorf("%w: insert catalog items: %v", domain.ErrPersistenceFailure, err)
	}

	r.store.logger.Debug("inserted catalog items",
		zap.Int("inserted", len(result.Inserted)),
		zap.Int("collisions", len(result.Collisions)))
	return result, nil
}

func (r *CatalogRepository) insertOne(ctx context.Context, tx *sqlx.Tx, item domain.CatalogItem) (bool, error) {
	key, keyLower := nullableKey(item.Key)

	ib := r.store.flavor.NewInsertBuilder()
	ib.InsertInto("catalog_items")
	ib.Cols("id", "item_code", "item_code_lower", "name", "description", "material_number",
		"hsn_code", "quantity_unit", "alias", "embedding", "created_at")
	ib.Values(item.ID, key, keyLower, item.Name, item.Description, item.MaterialNumber,
		item.HSNCode, item.QuantityUnit, item.Alias, encodeEmbedding(item.Embedding), formatTimestamp(item.CreatedAt))

	query, args := ib.Build()
	query += " ON CONFLICT (item_code_lower) DO NOTHING"

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert catalog item %q: %w", item.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
