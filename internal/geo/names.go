package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Leading abbreviations expanded before comparing commune names.
var nameAbbrev = map[string]string{
	"st":  "saint",
	"ste": "sainte",
}

// NormalizeName lower-cases a place name, strips diacritics and collapses
// hyphens, apostrophes and punctuation to single spaces.
//
//	"Saint-Étienne" -> "saint etienne"
//	"L'Haÿ-les-Roses" -> "l hay les roses"
func NormalizeName(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(decomposed))
	space := true
	for _, r := range decomposed {
		switch {
		case unicode.IsMark(r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		if full, ok := nameAbbrev[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

// NameMatches reports whether one normalised name contains the other.
// Empty names never match.
func NameMatches(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
