package domain

import "time"

// MatchMethod tags the signal that produced a candidate or verdict
type MatchMethod string

const (
	MethodKey    MatchMethod = "key"
	MethodVector MatchMethod = "vector"
	MethodFuzzy  MatchMethod = "fuzzy"
	MethodNone   MatchMethod = "none"
	MethodError  MatchMethod = "error"
)

// MatchStatus is the verdict assigned to one extracted item
type MatchStatus string

const (
	StatusAlreadyExists MatchStatus = "already_exists"
	StatusMatched       MatchStatus = "matched"
	StatusSuggested     MatchStatus = "suggested"
	StatusUnmatched     MatchStatus = "unmatched"
)

// ParseMatchStatus converts a wire value into a MatchStatus.
func ParseMatchStatus(s string) (MatchStatus, bool) {
	switch MatchStatus(s) {
	case StatusAlreadyExists, StatusMatched, StatusSuggested, StatusUnmatched:
		return MatchStatus(s), true
	}
	return "", false
}

// CatalogItem is a row of the master catalog (stock master) or of a saved
// purchase order. Key is the sparse business identifier (item code).
type CatalogItem struct {
	ID             string    `json:"id,omitempty" db:"id"`
	Key            string    `json:"itemCode,omitempty" db:"item_code"`
	Name           string    `json:"name,omitempty" db:"name"`
	Description    string    `json:"description,omitempty" db:"description"`
	MaterialNumber string    `json:"materialNumber,omitempty" db:"material_number"`
	HSNCode        string    `json:"hsnCode,omitempty" db:"hsn_code"`
	QuantityUnit   string    `json:"quantityUnit,omitempty" db:"quantity_unit"`
	Alias          string    `json:"alias,omitempty" db:"alias"`
	Embedding      []float32 `json:"embedding,omitempty" db:"-"`
	CreatedAt      time.Time `json:"createdAt,omitempty" db:"created_at"`
}

// HasText reports whether the item carries anything the engine can match on.
func (c CatalogItem) HasText() bool {
	return c.Key != "" || c.Name != "" || c.Description != ""
}

// MatchCandidate is one ranked hit returned by a similarity provider
type MatchCandidate struct {
	Item   CatalogItem `json:"item"`
	Score  float64     `json:"score"` // 0-1, higher is more similar
	Method MatchMethod `json:"method"`
}

// TierAttempt records what a single matching tier saw for one item
type TierAttempt struct {
	Method    MatchMethod `json:"method"`
	BestScore float64     `json:"bestScore"`
	Reason    string      `json:"reason,omitempty"`
}

// MatchVerdict is the classification of one extracted item. MatchedItem is
// non-nil for every status except StatusUnmatched.
type MatchVerdict struct {
	Status      MatchStatus   `json:"matchStatus"`
	Confidence  float64       `json:"confidence"`
	Method      MatchMethod   `json:"method"`
	MatchedItem *CatalogItem  `json:"matchedMasterItem"`
	Attempts    []TierAttempt `json:"attempts,omitempty"`
}

// PurchaseOrder is a saved purchase order and its ordered items
type PurchaseOrder struct {
	ID         string        `json:"id,omitempty" db:"id"`
	OrderNo    string        `json:"purchaseOrderNo" db:"order_no" validate:"required,max=128"`
	Vendor     string        `json:"vendor,omitempty" db:"vendor" validate:"max=256"`
	OrderDate  string        `json:"purchaseOrderDate,omitempty" db:"order_date" validate:"max=64"`
	Currency   string        `json:"currency,omitempty" db:"currency" validate:"max=16"`
	BuyerName  string        `json:"buyerName,omitempty" db:"buyer_name" validate:"max=256"`
	SourceFile string        `json:"originalFileName,omitempty" db:"source_file" validate:"max=512"`
	CreatedAt  time.Time     `json:"createdAt,omitempty" db:"created_at"`
	Items      []CatalogItem `json:"itemsOrdered" db:"-"`
}
