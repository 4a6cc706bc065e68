// Package external splits one-line Spanish addresses into AddressQuery
// fields, with libpostal when the binary is built with -tags libpostal and a
// regex parser otherwise.
package external

import (
	"regexp"
	"strings"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/normalizer"
)

// Parser sources
const (
	SourceLibpostal = "libpostal"
	SourceRegex     = "regex"
)

// ParsedAddress labelled components of a free-text address
type ParsedAddress struct {
	StreetType   string `json:"street_type,omitempty"`
	StreetName   string `json:"street_name"`
	StreetNumber string `json:"street_number,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	District     string `json:"district,omitempty"`
	City         string `json:"city,omitempty"`
	Source       string `json:"source"`
}

// Query converts the parse into a validation input
func (p ParsedAddress) Query() models.AddressQuery {
	return models.AddressQuery{
		StreetType:   p.StreetType,
		StreetName:   p.StreetName,
		StreetNumber: p.StreetNumber,
		PostalCode:   p.PostalCode,
		District:     p.District,
	}
}

var (
	rePostalCode   = regexp.MustCompile(`\b(28\d{3})\b`)
	reDistrict     = regexp.MustCompile(`(?i)\bdistrito\s+(?:de\s+)?([\p{L}\d .-]+?)\s*(?:,|$)`)
	reCityTail     = regexp.MustCompile(`(?i)[\s,(]*\b(madrid|espa[ñn]a)\b[\s,)]*`)
	reSlashType    = regexp.MustCompile(`^([\p{L}º°ª.]{1,10})/\s*`)
	reNumberMarker = regexp.MustCompile(`(?i)^(n[º°o]\.?|num\.?|n[uú]mero)$`)
	reNumberToken  = regexp.MustCompile(`(?i)^(\d{1,5}(?:\s?(?:bis|dup|[a-z]))?|s/?n)[,.]?$`)
)

// ParseFreeTextAddress parses raw. useLibpostal selects libpostal when it
// was compiled in; any field it leaves empty is filled by the regex parser.
func ParseFreeTextAddress(raw string, useLibpostal bool) ParsedAddress {
	fallback := parseWithRegex(raw)
	if !useLibpostal || !LibpostalAvailable {
		return fallback
	}
	lp, ok := parseWithLibpostal(raw)
	if !ok {
		return fallback
	}
	if lp.StreetNumber == "" {
		lp.StreetNumber = fallback.StreetNumber
	}
	if lp.PostalCode == "" {
		lp.PostalCode = fallback.PostalCode
	}
	if lp.District == "" {
		lp.District = fallback.District
	}
	return lp
}

// parseWithRegex handles the usual shapes of the registry's free text:
//
//	"Calle Gran Vía, 1, 28013 Madrid"
//	"Pº de la Chopera nº 4"
//	"C/Alcalá 50 (Distrito Centro)"
func parseWithRegex(raw string) ParsedAddress {
	out := ParsedAddress{Source: SourceRegex}
	s := strings.TrimSpace(raw)

	if m := rePostalCode.FindStringSubmatchIndex(s); m != nil {
		out.PostalCode = s[m[2]:m[3]]
		s = s[:m[0]] + " " + s[m[1]:]
	}
	s = strings.NewReplacer("(", ",", ")", ",").Replace(s)
	if m := reDistrict.FindStringSubmatchIndex(s); m != nil {
		out.District = strings.TrimSpace(s[m[2]:m[3]])
		s = s[:m[0]] + "," + s[m[1]:]
	}
	s = reCityTail.ReplaceAllString(s, " ")
	s = reSlashType.ReplaceAllString(strings.TrimSpace(s), "$1 ")

	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	var street []string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if reNumberMarker.MatchString(tok) && i+1 < len(tokens) {
			continue
		}
		// "Plaza 2 de Mayo 3": a number right after the type is part of the name
		if reNumberToken.MatchString(tok) && len(street) > 0 && !(len(street) == 1 && isStreetType(street[0])) {
			out.StreetNumber = strings.TrimRight(tok, ",.")
			break
		}
		street = append(street, tok)
	}

	out.StreetType, out.StreetName = splitStreetType(strings.Join(street, " "))
	return out
}

// splitStreetType peels a recognised street type off the front of s
func splitStreetType(s string) (streetType, name string) {
	s = strings.TrimSpace(s)
	first, rest, found := strings.Cut(s, " ")
	if !found {
		return "", s
	}
	if isStreetType(first) {
		return first, strings.TrimSpace(rest)
	}
	return "", s
}

func isStreetType(tok string) bool {
	_, ok := normalizer.CanonicalStreetType(tok)
	return ok
}
