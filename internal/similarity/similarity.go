// Package similarity scores street-name likeness on a [0,1] scale.
package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/dea-registry/internal/normalizer"
)

// Ratio edit-distance ratio: 1 - dist/maxLen. Symmetric, 1.0 for equal
// strings (including two empty strings).
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	r := 1.0 - float64(d)/float64(maxLen)
	if r < 0 {
		return 0
	}
	return r
}

// StreetName best of the plain-normalized and article-stripped comparisons
func StreetName(input, official string) float64 {
	plain := Ratio(normalizer.Normalize(input), normalizer.Normalize(official))
	stripped := Ratio(normalizer.NormalizeStreetName(input), normalizer.NormalizeStreetName(official))
	if stripped > plain {
		return stripped
	}
	return plain
}
