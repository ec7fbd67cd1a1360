package usecase

import (
	"fmt"
	"strings"

	"github.com/docrecon/docrecon/internal/domain"
)

// CorpusEntry is one searchable catalog row. Position is the row's index in
// the snapshot and is used to break score ties.
type CorpusEntry struct {
	SearchText string
	Item       domain.CatalogItem
	Position   int
}

// CatalogIndex is an immutable lookup structure built once per batch.
type CatalogIndex struct {
	byKey         map[string]domain.CatalogItem
	corpus        []CorpusEntry
	duplicateKeys []string
}

// NewCatalogIndex builds the key map and the search corpus in a single pass.
// When a key occurs more than once the first row wins; later rows stay in
// the corpus but are not reachable by key.
func NewCatalogIndex(snapshot []domain.CatalogItem) (*CatalogIndex, error) {
	idx := &CatalogIndex{
		byKey:  make(map[string]domain.CatalogItem, len(snapshot)),
		corpus: make([]CorpusEntry, 0, len(snapshot)),
	}

	for i, item := range snapshot {
		if !item.HasText() {
			return nil, fmt.Errorf("%w: row %d (id %q) has no key, name or description", domain.ErrCorruptSnapshot, i, item.ID)
		}

		if key := normalizeKey(item.Key); key != "" {
			if _, exists := idx.byKey[key]; exists {
				idx.duplicateKeys = append(idx.duplicateKeys, key)
			} else {
				idx.byKey[key] = item
			}
		}

		idx.corpus = append(idx.corpus, CorpusEntry{
			SearchText: searchText(item),
			Item:       item,
			Position:   i,
		})
	}

	return idx, nil
}

// Lookup finds a catalog row by key, case-insensitively.
func (idx *CatalogIndex) Lookup(key string) (domain.CatalogItem, bool) {
	k := normalizeKey(key)
	if k == "" {
		return domain.CatalogItem{}, false
	}
	item, ok := idx.byKey[k]
	return item, ok
}

// Corpus returns the searchable entries in snapshot order.
func (idx *CatalogIndex) Corpus() []CorpusEntry {
	return idx.corpus
}

// Size returns the number of rows in the snapshot
func (idx *CatalogIndex) Size() int {
	return len(idx.corpus)
}

// DuplicateKeys lists the keys that appeared more than once in the snapshot
func (idx *CatalogIndex) DuplicateKeys() []string {
	return idx.duplicateKeys
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func searchText(item domain.CatalogItem) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{item.Key, item.Name, item.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
