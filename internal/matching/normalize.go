package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips combining marks so "Ø" style variants compare equal to
// their base letters.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeCode standardizes a SKU or model number for identity comparison:
//  1. Folding accents
//  2. Converting to uppercase
//  3. Dropping every character that is not an ASCII letter or digit
//
// It is idempotent, so NormalizeCode("XR14-036") == NormalizeCode("xr14036").
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	code = strings.ToUpper(foldAccents(code))

	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeBrand lowercases a brand and collapses punctuation and spacing so
// "American-Standard" and "american standard" compare equal.
func NormalizeBrand(brand string) string {
	brand = strings.ToLower(foldAccents(strings.TrimSpace(brand)))
	brand = strings.NewReplacer("-", " ", "_", " ", ".", "", ",", "", "&", " and ").Replace(brand)
	return strings.Join(strings.Fields(brand), " ")
}

// normalizeText prepares free text for keyword and regex extraction.
func normalizeText(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return strings.ToUpper(foldAccents(b.String()))
}

// splitTokens splits on any non-alphanumeric separator.
func splitTokens(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
