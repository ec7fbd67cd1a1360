package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
)

// PurchaseOrderRepository implements domain.PurchaseOrderRepository
type PurchaseOrderRepository struct {
	store *Store
}

// ListOrderItems returns the items of one order, or of every order when
// orderNo is empty, in insertion order.
func (r *PurchaseOrderRepository) ListOrderItems(ctx context.Context, orderNo string) ([]domain.CatalogItem, error) {
	if orderNo != "" {
		if _, err := r.GetOrder(ctx, orderNo); err != nil {
			return nil, err
		}
	}

	sb := r.store.flavor.NewSelectBuilder()
	cols := make([]string, len(orderItemColumns))
	for i, c := range orderItemColumns {
		cols[i] = "i." + c
	}
	sb.Select(cols...)
	sb.From("purchase_order_items AS i")
	sb.Join("purchase_orders AS o", "o.id = i.order_id")
	if orderNo != "" {
		sb.Where(sb.Equal("o.order_no", orderNo))
	}
	sb.OrderBy("i.seq").Asc()

	query, args := sb.Build()
	var rows []itemRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.store.logger.Error("failed to list purchase order items", zap.String("order_no", orderNo), zap.Error(err))
		return nil, fmt.Errorf("%w: list purchase order items: %v", domain.ErrPersistenceFailure, err)
	}

	items := make([]domain.CatalogItem, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return items, nil
}

// GetOrder returns an order header without its items
func (r *PurchaseOrderRepository) GetOrder(ctx context.Context, orderNo string) (*domain.PurchaseOrder, error) {
	sb := r.store.flavor.NewSelectBuilder()
	sb.Select(orderColumns...)
	sb.From("purchase_orders")
	sb.Where(sb.Equal("order_no", orderNo))

	query, args := sb.Build()
	var row orderRow
	if err := r.store.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderNo)
		}
		return nil, fmt.Errorf("%w: get purchase order: %v", domain.ErrPersistenceFailure, err)
	}

	order := row.toDomain()
	return &order, nil
}

// ListOrders returns every order header, newest first
func (r *PurchaseOrderRepository) ListOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	sb := r.store.flavor.NewSelectBuilder()
	sb.Select(orderColumns...)
	sb.From("purchase_orders")
	sb.OrderBy("seq").Desc()

	query, args := sb.Build()
	var rows []orderRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list purchase orders: %v", domain.ErrPersistenceFailure, err)
	}

	orders := make([]domain.PurchaseOrder, len(rows))
	for i, row := range rows {
		orders[i] = row.toDomain()
	}
	return orders, nil
}

// SaveOrder stores the order header and its items in one transaction. An
// existing order number fails with domain.ErrDuplicateKey; an item key
// repeated within the order is reported as a collision.
func (r *PurchaseOrderRepository) SaveOrder(ctx context.Context, order *domain.PurchaseOrder) (*domain.InsertResult, error) {
	if order == nil || order.OrderNo == "" {
		return nil, domain.ErrInvalidRequest
	}

	result := &domain.InsertResult{
		Inserted: make([]domain.CatalogItem, 0, len(order.Items)),
	}
	now := time.Now().UTC()
	orderID := order.ID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	err := r.store.withTx(ctx, func(tx *sqlx.Tx) error {
		ib := r.store.flavor.NewInsertBuilder()
		ib.InsertInto("purchase_orders")
		ib.Cols(orderColumns...)
		ib.Values(orderID, order.OrderNo, order.Vendor, order.OrderDate, order.Currency,
			order.BuyerName, order.SourceFile, formatTimestamp(now))
		query, args := ib.Build()
		query += " ON CONFLICT (order_no) DO NOTHING"

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert purchase order: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("%w: purchase order %s already exists", domain.ErrDuplicateKey, order.OrderNo)
		}

		for i, item := range order.Items {
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			item.CreatedAt = now

			inserted, err := r.insertItem(ctx, tx, orderID, item)
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
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, err
		}
		r.store.logger.Error("failed to save purchase order", zap.String("order_no", order.OrderNo), zap.Error(err))
		return nil, fmt.Errorf("%w: save purchase order: %v", domain.ErrPersistenceFailure, err)
	}

	order.ID = orderID
	order.CreatedAt = now
	return result, nil
}

func (r *PurchaseOrderRepository) insertItem(ctx context.Context, tx *sqlx.Tx, orderID string, item domain.CatalogItem) (bool, error) {
	key, keyLower := nullableKey(item.Key)

	ib := r.store.flavor.NewInsertBuilder()
	ib.InsertInto("purchase_order_items")
	ib.Cols("id", "order_id", "item_code", "item_code_lower", "name", "description",
		"material_number", "hsn_code", "quantity_unit", "alias", "created_at")
	ib.Values(item.ID, orderID, key, keyLower, item.Name, item.Description,
		item.MaterialNumber, item.HSNCode, item.QuantityUnit, item.Alias, formatTimestamp(item.CreatedAt))

	query, args := ib.Build()
	query += " ON CONFLICT (order_id, item_code_lower) DO NOTHING"

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert purchase order item %q: %w", item.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
