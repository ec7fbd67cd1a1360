package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)

	// Quantity annotations like "10 pcs", "qty: 5", "2 nos"
	quantityPattern = regexp.MustCompile(`(?i)\b(?:qty\s*:?\s*\d+(?:\.\d+)?|\d+(?:\.\d+)?\s*(?:pcs|pc|nos|no|units?|ea|each|sets?))\b`)
)

// lineItemNoiseWords are common trade-document words that carry no identity
var lineItemNoiseWords = map[string]bool{
	// Basic English stop words
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true,
	// Document noise
	"item": true, "items": true, "qty": true, "quantity": true,
	"pcs": true, "nos": true, "each": true, "ea": true, "unit": true,
	"units": true, "per": true, "approx": true, "ref": true,
	"description": true, "type": true, "model": true,
}

// foldText lower-cases s and strips diacritics ("Crème Brûlée" -> "creme brulee").
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// normalizeText prepares free text for lexical comparison: folds case and
// accents, drops quantity annotations and punctuation, collapses whitespace.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	result := foldText(s)
	result = quantityPattern.ReplaceAllString(result, " ")
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// tokenize splits normalized text into tokens, dropping noise words and
// single-letter fragments. Numeric tokens are kept since sizes identify parts.
func tokenize(s string) []string {
	words := strings.Fields(normalizeText(s))

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) <= 1 && !isNumeric(word) {
			continue
		}
		if lineItemNoiseWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
