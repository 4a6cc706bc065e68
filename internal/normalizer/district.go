package normalizer

import (
	"regexp"
	"strconv"
)

// MadridDistricts official district names by code (1-21)
var MadridDistricts = [...]string{
	1:  "Centro",
	2:  "Arganzuela",
	3:  "Retiro",
	4:  "Salamanca",
	5:  "Chamartín",
	6:  "Tetuán",
	7:  "Chamberí",
	8:  "Fuencarral-El Pardo",
	9:  "Moncloa-Aravaca",
	10: "Latina",
	11: "Carabanchel",
	12: "Usera",
	13: "Puente de Vallecas",
	14: "Moratalaz",
	15: "Ciudad Lineal",
	16: "Hortaleza",
	17: "Villaverde",
	18: "Villa de Vallecas",
	19: "Vicálvaro",
	20: "San Blas-Canillejas",
	21: "Barajas",
}

const (
	MinDistrict = 1
	MaxDistrict = 21
)

// "2", "2 arganzuela", "distrito 14", "distrito no 14" (input already normalized)
var reDistrictNumber = regexp.MustCompile(`^(?:distrito\s+(?:(?:n|no|num|numero)\s+)?)?(\d+)(?:\s|$)`)

var districtByName = buildDistrictIndex()

func buildDistrictIndex() map[string]int {
	idx := make(map[string]int)
	for code := MinDistrict; code <= MaxDistrict; code++ {
		idx[Normalize(MadridDistricts[code])] = code
	}
	// short forms used by the registry operators
	idx["fuencarral"] = 8
	idx["el pardo"] = 8
	idx["moncloa"] = 9
	idx["aravaca"] = 9
	idx["vallecas"] = 13
	idx["san blas"] = 20
	idx["canillejas"] = 20
	return idx
}

// ExtractDistrictNumber resolves free-text district input to 1..21.
// Accepts "2", "2. Arganzuela", "2 - Arganzuela", "Distrito 14" and bare
// district names. Returns 0 when unresolved or out of range.
func ExtractDistrictNumber(input string) int {
	n := Normalize(input)
	if n == "" {
		return 0
	}
	if m := reDistrictNumber.FindStringSubmatch(n); m != nil {
		code, err := strconv.Atoi(m[1])
		if err != nil || code < MinDistrict || code > MaxDistrict {
			return 0
		}
		return code
	}
	if code, ok := districtByName[n]; ok {
		return code
	}
	if m := reDistrictName.FindStringSubmatch(n); m != nil {
		if code, ok := districtByName[m[1]]; ok {
			return code
		}
	}
	return 0
}

// "distrito de arganzuela", "distrito arganzuela"
var reDistrictName = regexp.MustCompile(`^distrito\s+(?:de\s+)?(.+)$`)

// DistrictName official name, empty when code is out of range
func DistrictName(code int) string {
	if code < MinDistrict || code > MaxDistrict {
		return ""
	}
	return MadridDistricts[code]
}

// DistrictLabel "2. Arganzuela"
func DistrictLabel(code int) string {
	name := DistrictName(code)
	if name == "" {
		return ""
	}
	return strconv.Itoa(code) + ". " + name
}
