// Package trigram implements the trigram similarity used to rank chunks
// against a query. It follows PostgreSQL's pg_trgm semantics so the SQLite
// and PostgreSQL stores rank identically.
package trigram

import (
	"strings"
	"unicode"
)

// Threshold is the minimum similarity for a chunk to count as a match.
// It equals pg_trgm's default similarity_threshold.
const Threshold = 0.3

// Set is the distinct trigrams of a string.
type Set map[string]struct{}

// Extract returns the trigram set of s. Text is lowercased and split into
// words of letters and digits; each word is padded with two leading
// spaces and one trailing space before trigrams are taken.
func Extract(s string) Set {
	set := make(Set)
	for _, w := range words(strings.ToLower(s)) {
		r := []rune("  " + w + " ")
		for i := 0; i+3 <= len(r); i++ {
			set[string(r[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity returns the share of trigrams common to both sets, in [0, 1].
func (s Set) Similarity(other Set) float64 {
	if len(s) == 0 || len(other) == 0 {
		return 0
	}
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for t := range small {
		if _, ok := large[t]; ok {
			common++
		}
	}
	return float64(common) / float64(len(s)+len(other)-common)
}

// Similarity returns the trigram similarity of a and b.
func Similarity(a, b string) float64 {
	return Extract(a).Similarity(Extract(b))
}

// Match reports whether a and b reach Threshold.
func Match(a, b string) bool {
	return Similarity(a, b) >= Threshold
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
