//go:build libpostal

package external

import (
	"strings"

	"github.com/openvenues/gopostal/expand"
	"github.com/openvenues/gopostal/parser"
)

// LibpostalAvailable the binary was built with the libpostal tag
const LibpostalAvailable = true

// parseWithLibpostal labels the address with libpostal's CRF parser. The
// Spanish expansion is only used to pick the road when the raw parse has none.
func parseWithLibpostal(raw string) (ParsedAddress, bool) {
	comps := parser.ParseAddressOptions(raw, parser.ParserOptions{Country: "es", Language: "es"})
	if !hasLabel(comps, "road") {
		opts := expand.GetDefaultExpansionOptions()
		opts.Languages = []string{"es"}
		if exps := expand.ExpandAddressOptions(raw, opts); len(exps) > 0 {
			comps = parser.ParseAddressOptions(exps[0], parser.ParserOptions{Country: "es", Language: "es"})
		}
	}

	var out ParsedAddress
	for _, c := range comps {
		v := strings.TrimSpace(c.Value)
		switch c.Label {
		case "road":
			out.StreetType, out.StreetName = splitStreetType(v)
		case "house_number":
			out.StreetNumber = v
		case "postcode":
			out.PostalCode = v
		case "city_district", "suburb":
			if out.District == "" {
				out.District = v
			}
		case "city":
			out.City = v
		}
	}
	out.Source = SourceLibpostal
	return out, out.StreetName != ""
}

func hasLabel(comps []parser.ParsedComponent, label string) bool {
	for _, c := range comps {
		if c.Label == label {
			return true
		}
	}
	return false
}
