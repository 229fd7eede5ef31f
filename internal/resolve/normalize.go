package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case, strips diacritics and treats '_' and '-' as spaces,
// so "Élan_Vital" and "elan vital" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	folded = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// tokens splits a normalized name on whitespace, dropping tokens of two
// runes or fewer.
func tokens(normalized string) []string {
	var out []string
	for _, f := range strings.Fields(normalized) {
		if len([]rune(f)) > 2 {
			out = append(out, f)
		}
	}
	return out
}
