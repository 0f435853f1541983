package token

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxFieldLength clamps free-text fields to what downstream label and QR
// rendering can fit.
const maxFieldLength = 24

// foldTransformer strips combining marks, mapping accented characters to
// their ASCII base (á→a, ñ→n).
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds accents, collapses whitespace, strips the token delimiter,
// and clamps length. Both encoding and tolerant comparison use this, so a
// token issued from "Muñoz" still validates against the stored "Munoz".
func Normalize(value string) string {
	folded, _, err := transform.String(foldTransformer, value)
	if err != nil {
		folded = value
	}
	folded = strings.ReplaceAll(folded, delimiter, " ")
	folded = strings.Join(strings.Fields(folded), " ")
	// Clamp by runes. Characters the accent fold leaves multibyte (ø,
	// Cyrillic, CJK) must not be cut mid-encoding.
	if runeCount := utf8.RuneCountInString(folded); runeCount > maxFieldLength {
		clamped := []rune(folded)
		folded = string(clamped[:maxFieldLength])
	}
	return folded
}

// normalizeForComparison lowercases on top of Normalize so validation is
// case-insensitive.
func normalizeForComparison(value string) string {
	return strings.ToLower(Normalize(value))
}
