package domain

// ExtractedLineItem is a typed view of one line item produced by document
// extraction. Fields keeps every raw value so callers can echo them back.
type ExtractedLineItem struct {
	Key            string            `json:"itemCode,omitempty" validate:"max=128"`
	Name           string            `json:"name,omitempty" validate:"max=512"`
	Description    string            `json:"description" validate:"max=4096"`
	MaterialNumber string            `json:"materialNumber,omitempty" validate:"max=128"`
	Quantity       string            `json:"quantity,omitempty" validate:"max=64"`
	QuantityUnit   string            `json:"quantityUnit,omitempty" validate:"max=64"`
	HSNCode        string            `json:"hsnCode,omitempty" validate:"max=64"`
	Alias          string            `json:"alias,omitempty" validate:"max=512"`
	Fields         map[string]string `json:"fields,omitempty"`

	// Malformed is set when the entry has neither key nor description; such
	// entries are always classified unmatched. Problem also carries
	// validation notes for entries that are still matchable.
	Malformed bool   `json:"malformed,omitempty"`
	Problem   string `json:"problem,omitempty"`
}

// ToCatalogItem converts an extracted item into a new catalog row.
func (e ExtractedLineItem) ToCatalogItem() CatalogItem {
	return CatalogItem{
		Key:            e.Key,
		Name:           e.Name,
		Description:    e.Description,
		MaterialNumber: e.MaterialNumber,
		HSNCode:        e.HSNCode,
		QuantityUnit:   e.QuantityUnit,
		Alias:          e.Alias,
	}
}

// AnnotatedItem pairs an extracted item with its verdict
type AnnotatedItem struct {
	Item    ExtractedLineItem `json:"item"`
	Verdict MatchVerdict      `json:"verdict"`
}

// SkipReason explains why an item was not inserted
type SkipReason string

const (
	SkipAlreadyExists    SkipReason = "already_exists"
	SkipDuplicateInBatch SkipReason = "duplicate_in_batch"
	SkipNotInsertable    SkipReason = "not_insertable"
)

// SkippedItem is an item left out of the insert set
type SkippedItem struct {
	Item   ExtractedLineItem `json:"item"`
	Reason SkipReason        `json:"reason"`
}

// PlanSummary counts the outcome of a reconciliation plan or commit
type PlanSummary struct {
	Total            int `json:"total"`
	Eligible         int `json:"eligible"`
	Inserted         int `json:"inserted"`
	SkippedExisting  int `json:"skippedExisting"`
	SkippedDuplicate int `json:"skippedDuplicate"`
	SkippedOther     int `json:"skippedOther"`
}

// ReconciliationPlan is the insert decision for an annotated batch
type ReconciliationPlan struct {
	ToInsert []AnnotatedItem `json:"toInsert"`
	Skipped  []SkippedItem   `json:"skipped"`
	Summary  PlanSummary     `json:"summary"`
}

// InsertResult is what a persistence writer reports for a bulk insert.
// Collisions holds the indexes (into the submitted slice) rejected because
// their key already exists.
type InsertResult struct {
	Inserted   []CatalogItem
	Collisions []int
}

// CommitResult is the outcome of committing a plan
type CommitResult struct {
	Inserted         []CatalogItem `json:"inserted"`
	Skipped          []SkippedItem `json:"skipped"`
	Summary          PlanSummary   `json:"summary"`
	RefreshSignalled bool          `json:"refreshSignalled"`
}
