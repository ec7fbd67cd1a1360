package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/docrecon/docrecon/internal/domain"
)

// Field aliases seen in extraction output, in order of preference
var (
	keyFieldAliases         = []string{"itemCode", "item_code", "itemcode", "code", "key", "sku"}
	descriptionFieldAliases = []string{"description", "itemDescription", "materialDescription"}
	nameFieldAliases        = []string{"name", "itemName", "item_name"}
)

// LineItemNormalizer converts loosely typed extraction records into typed
// line items before they reach the matcher.
type LineItemNormalizer struct {
	validate *validator.Validate
}

// NewLineItemNormalizer creates a new normalizer
func NewLineItemNormalizer() *LineItemNormalizer {
	return &LineItemNormalizer{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Normalize converts every raw record. It never fails: records with neither
// key nor description are returned with Malformed set, keeping batch
// positions intact. Oversized text is cut down and noted in Problem.
func (n *LineItemNormalizer) Normalize(raw []map[string]any) []domain.ExtractedLineItem {
	items := make([]domain.ExtractedLineItem, len(raw))
	for i, record := range raw {
		items[i] = n.NormalizeOne(record)
	}
	return items
}

// NormalizeOne converts a single raw record
func (n *LineItemNormalizer) NormalizeOne(record map[string]any) domain.ExtractedLineItem {
	fields := make(map[string]string, len(record))
	for k, v := range record {
		if s := stringify(v); s != "" {
			fields[k] = s
		}
	}

	item := domain.ExtractedLineItem{
		Key:            firstField(fields, keyFieldAliases),
		Name:           firstField(fields, nameFieldAliases),
		Description:    firstField(fields, descriptionFieldAliases),
		MaterialNumber: firstField(fields, []string{"materialNumber", "material_number"}),
		Quantity:       firstField(fields, []string{"quantity", "qty"}),
		QuantityUnit:   firstField(fields, []string{"quantityUnit", "quantity_unit", "unit"}),
		HSNCode:        firstField(fields, []string{"hsnCode", "hsn_code", "hsn"}),
		Alias:          firstField(fields, []string{"alias"}),
		Fields:         fields,
	}

	// The name is the closest thing to a description when extraction left it out
	if item.Description == "" {
		item.Description = item.Name
	}

	if item.Key == "" && item.Description == "" {
		item.Malformed = true
		item.Problem = "missing description and item code"
		return item
	}

	if err := n.validate.Struct(item); err != nil {
		item.Problem = clampOversized(&item, err)
	}

	return item
}

// clampOversized cuts free-text fields that failed a max rule down to the
// limit and describes every rule violation. The key is never cut: a shortened
// code could collide with a different catalog row.
func clampOversized(item *domain.ExtractedLineItem, err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}

	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		limit, convErr := strconv.Atoi(fe.Param())
		field := textField(item, fe.StructField())
		if fe.Tag() != "max" || convErr != nil || field == nil {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		*field = truncateRunes(*field, limit)
		parts = append(parts, fmt.Sprintf("%s truncated to %d characters", fe.Field(), limit))
	}
	return strings.Join(parts, "; ")
}

func textField(item *domain.ExtractedLineItem, name string) *string {
	switch name {
	case "Name":
		return &item.Name
	case "Description":
		return &item.Description
	case "MaterialNumber":
		return &item.MaterialNumber
	case "Quantity":
		return &item.Quantity
	case "QuantityUnit":
		return &item.QuantityUnit
	case "HSNCode":
		return &item.HSNCode
	case "Alias":
		return &item.Alias
	default:
		return nil
	}
}

func truncateRunes(s string, limit int) string {
	if limit < 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}

func firstField(fields map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if v, ok := fields[alias]; ok && v != "" {
			return v
		}
	}
	return ""
}

// stringify renders a decoded JSON value as trimmed text
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(val)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

func describeValidation(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(parts, "; ")
}
