package normalizer

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks: "Vía" -> "Via", "Peñalver" -> "Penalver"
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

// isMn nonspacing mark
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// FoldASCII strips diacritics then transliterates whatever is still non-ASCII
// (ª, º, ligatures) and lowercases.
func FoldASCII(s string) string {
	s = StripDiacritics(s)
	if !isASCII(s) {
		s = unidecode.Unidecode(s)
	}
	return strings.ToLower(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8RuneSelf {
			return false
		}
	}
	return true
}

const utf8RuneSelf = 0x80
