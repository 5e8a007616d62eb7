// Package resolve matches business records from an external source against
// a candidate pool using a tiered cascade: external key, exact name, then a
// fuzzy name+location score.
package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopTokens are dropped from names before fuzzy comparison: legal entity
// suffixes, generic trade words for this dataset, and connectives.
var stopTokens = map[string]struct{}{
	"llc": {}, "inc": {}, "corp": {}, "co": {}, "company": {},
	"hvac": {}, "heating": {}, "cooling": {}, "air": {}, "conditioning": {},
	"service": {}, "services": {}, "solutions": {}, "system": {}, "systems": {},
	"contractor": {}, "contractors": {}, "mechanical": {},
	"plumbing": {}, "electrical": {},
	"&": {}, "and": {}, "the": {},
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lower-cases s and strips combining marks (Café -> cafe).
func fold(s string) string {
	out, _, err := transform.String(foldAccents, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// NormalizeName reduces a business name to its distinguishing tokens:
//  1. Lower-case and fold accents
//  2. Delete apostrophes (Joe's -> joes)
//  3. Turn every other non-alphanumeric rune into a space
//  4. Drop stop tokens (llc, hvac, and, ...)
//  5. Collapse whitespace
//
// The output contains no stop tokens and no punctuation, so normalizing it
// again returns it unchanged.
func NormalizeName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = fold(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '’' || r == '`':
			// dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := stopTokens[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// NormalizePhone keeps only the ASCII digits of raw.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCity lower-cases and trims raw.
func NormalizeCity(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// phoneTail returns the last 10 digits of a normalized phone so numbers with
// and without a country code compare equal.
func phoneTail(digits string) string {
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}
