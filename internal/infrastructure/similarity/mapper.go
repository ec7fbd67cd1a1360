package similarity

import (
	"strings"

	"github.com/docrecon/docrecon/internal/domain"
)

// embeddingsNotLoadedDetail is the error detail the service returns while it
// has no reference embeddings in memory
const embeddingsNotLoadedDetail = "embeddings not loaded"

// matchRequest is the body of POST /match
type matchRequest struct {
	Descriptions []string `json:"descriptions"`
	TopN         int      `json:"top_n"`
}

// matchResult is one entry of the /match response, aligned with the request
type matchResult struct {
	Method  string       `json:"method"`
	Matches []matchEntry `json:"matches"`
}

type matchEntry struct {
	Item   catalogDocument `json:"item"`
	Score  float64         `json:"score"`
	Method string          `json:"method"`
}

// catalogDocument is a stock master row as the similarity service stores it
type catalogDocument struct {
	MongoID        string    `json:"_id"`
	ID             string    `json:"id"`
	ItemCode       string    `json:"itemCode"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	MaterialNumber string    `json:"materialNumber"`
	HSNCode        string    `json:"hsnCode"`
	QuantityUnit   string    `json:"quantityUnit"`
	Alias          string    `json:"alias"`
	Embedding      []float32 `json:"embedding"`
}

// errorResponse is the service's error envelope
type errorResponse struct {
	Detail string `json:"detail"`
}

// refreshResponse is the body of a successful POST /refresh
type refreshResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// MapToSimilarityResults converts the wire response to domain results
func MapToSimilarityResults(results []matchResult) []domain.SimilarityResult {
	mapped := make([]domain.SimilarityResult, len(results))
	for i, r := range results {
		matches := make([]domain.MatchCandidate, 0, len(r.Matches))
		for _, m := range r.Matches {
			matches = append(matches, domain.MatchCandidate{
				Item:   MapToCatalogItem(m.Item),
				Score:  m.Score,
				Method: mapMethod(m.Method, r.Method),
			})
		}
		mapped[i] = domain.SimilarityResult{
			Matches: matches,
			Method:  mapMethod(r.Method, ""),
		}
	}
	return mapped
}

// MapToCatalogItem converts a service document to a catalog item. The
// embedding is dropped; the engine never needs it.
func MapToCatalogItem(doc catalogDocument) domain.CatalogItem {
	id := doc.MongoID
	if id == "" {
		id = doc.ID
	}
	return domain.CatalogItem{
		ID:             id,
		Key:            strings.TrimSpace(doc.ItemCode),
		Name:           doc.Name,
		Description:    doc.Description,
		MaterialNumber: doc.MaterialNumber,
		HSNCode:        doc.HSNCode,
		QuantityUnit:   doc.QuantityUnit,
		Alias:          doc.Alias,
	}
}

func mapMethod(method, fallback string) domain.MatchMethod {
	if method == "" {
		method = fallback
	}
	switch strings.ToLower(method) {
	case string(domain.MethodFuzzy):
		return domain.MethodFuzzy
	default:
		return domain.MethodVector
	}
}

// isEmbeddingsNotLoaded reports whether an error detail means the service
// has nothing to compare against yet
func isEmbeddingsNotLoaded(detail string) bool {
	return strings.Contains(strings.ToLower(detail), embeddingsNotLoadedDetail)
}
