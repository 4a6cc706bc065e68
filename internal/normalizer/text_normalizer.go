package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9\s]+`)
	reSpaces   = regexp.MustCompile(`\s+`)
)

// streetArticles leading articles/prepositions, checked in order, first hit wins
var streetArticles = []string{"de la", "de los", "de las", "del", "de", "la", "los", "las", "el"}

// Normalize lowercases, strips diacritics and punctuation, collapses spaces.
// Output only contains [a-z0-9 ] so Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	s := FoldASCII(text)
	s = reNonAlnum.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeStreetName Normalize plus removal of at most one leading article.
//
//	"Paseo De la Chopera" is passed as name "De la Chopera" -> "chopera"
//	"Del Prado" -> "prado"
func NormalizeStreetName(text string) string {
	n := Normalize(text)
	for _, art := range streetArticles {
		if strings.HasPrefix(n, art+" ") {
			return strings.TrimSpace(n[len(art)+1:])
		}
	}
	return n
}

// Fingerprint stable key for a set of already-normalized parts
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x1F})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
