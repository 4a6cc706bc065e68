package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

var reHouseNumber = regexp.MustCompile(`(\d{1,5})\s*(bis|dup|[a-z])?\b`)

// ParseHouseNumber extracts the portal number: "4" -> 4, "4B" -> 4 "B",
// "Nº 12" -> 12, "12-14" -> 12. ok=false for "s/n" or empty input.
func ParseHouseNumber(raw string) (number int, suffix string, ok bool) {
	m := reHouseNumber.FindStringSubmatch(Normalize(raw))
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, strings.ToUpper(m[2]), true
}
