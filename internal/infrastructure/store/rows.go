package store

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/docrecon/docrecon/internal/domain"
)

var catalogColumns = []string{
	"id", "item_code", "name", "description", "material_number",
	"hsn_code", "quantity_unit", "alias", "embedding", "created_at",
}

var orderColumns = []string{
	"id", "order_no", "vendor", "order_date", "currency", "buyer_name", "source_file", "created_at",
}

var orderItemColumns = []string{
	"id", "item_code", "name", "description", "material_number",
	"hsn_code", "quantity_unit", "alias", "created_at",
}

// itemRow is a catalog_items or purchase_order_items row
type itemRow struct {
	ID             string         `db:"id"`
	ItemCode       sql.NullString `db:"item_code"`
	Name           string         `db:"name"`
	Description    string         `db:"description"`
	MaterialNumber string         `db:"material_number"`
	HSNCode        string         `db:"hsn_code"`
	QuantityUnit   string         `db:"quantity_unit"`
	Alias          string         `db:"alias"`
	Embedding      sql.NullString `db:"embedding"`
	CreatedAt      string         `db:"created_at"`
}

func (r itemRow) toDomain() domain.CatalogItem {
	item := domain.CatalogItem{
		ID:             r.ID,
		Key:            r.ItemCode.String,
		Name:           r.Name,
		Description:    r.Description,
		MaterialNumber: r.MaterialNumber,
		HSNCode:        r.HSNCode,
		QuantityUnit:   r.QuantityUnit,
		Alias:          r.Alias,
		CreatedAt:      parseTimestamp(r.CreatedAt),
	}
	if r.Embedding.Valid && r.Embedding.String != "" {
		// A malformed vector only loses the embedding, never the row
		_ = json.Unmarshal([]byte(r.Embedding.String), &item.Embedding)
	}
	return item
}

// orderRow is a purchase_orders row
type orderRow struct {
	ID         string `db:"id"`
	OrderNo    string `db:"order_no"`
	Vendor     string `db:"vendor"`
	OrderDate  string `db:"order_date"`
	Currency   string `db:"currency"`
	BuyerName  string `db:"buyer_name"`
	SourceFile string `db:"source_file"`
	CreatedAt  string `db:"created_at"`
}

func (r orderRow) toDomain() domain.PurchaseOrder {
	return domain.PurchaseOrder{
		ID:         r.ID,
		OrderNo:    r.OrderNo,
		Vendor:     r.Vendor,
		OrderDate:  r.OrderDate,
		Currency:   r.Currency,
		BuyerName:  r.BuyerName,
		SourceFile: r.SourceFile,
		CreatedAt:  parseTimestamp(r.CreatedAt),
	}
}

// nullableKey returns the stored item code and its lower-cased unique form.
// Items without a code store NULL so they never collide.
func nullableKey(key string) (any, any) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	return key, strings.ToLower(key)
}

func encodeEmbedding(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil
	}
	return string(data)
}
