// Package normalize canonicalizes free-text names for comparison.
//
// Names from different spreadsheets drift in casing, accents and padding
// ("Café Brasil ", "CAFE BRASIL"). Normalize folds those differences away so
// two spellings of the same client produce the same key.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"sales-attribution-service/internal/models"
)

// Normalize upper-cases s, strips its diacritics and trims it. Upper-casing
// happens first so the result is already in decomposed form, which keeps
// Normalize idempotent.
func Normalize(s string) string {
	upper := strings.ToUpper(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, upper)
	if err != nil {
		stripped = upper
	}
	return strings.TrimSpace(stripped)
}

// Cell coerces a cell to text and normalizes it.
func Cell(c models.Cell) string {
	return Normalize(c.String())
}

// Fold lower-cases and trims a header for keyword tests.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
