package normalizer

import (
	"github.com/xrash/smetrics"
)

// Canonical street classes as they appear in the official callejero
const (
	StreetCalle      = "CALLE"
	StreetAvenida    = "AVENIDA"
	StreetPlaza      = "PLAZA"
	StreetPaseo      = "PASEO"
	StreetGlorieta   = "GLORIETA"
	StreetRonda      = "RONDA"
	StreetCamino     = "CAMINO"
	StreetCarretera  = "CARRETERA"
	StreetTravesia   = "TRAVESIA"
	StreetPasaje     = "PASAJE"
	StreetCostanilla = "COSTANILLA"
	StreetCuesta     = "CUESTA"
	StreetBulevar    = "BULEVAR"
)

// streetTypeAliases canonical class -> normalized spellings
var streetTypeAliases = map[string][]string{
	StreetAvenida:    {"av", "avd", "avda", "avenida"},
	StreetCalle:      {"c", "cl", "cll", "calle"},
	StreetPlaza:      {"pl", "plz", "pza", "plaza"},
	StreetPaseo:      {"ps", "pso", "po", "paseo"},
	StreetGlorieta:   {"gta", "glorieta"},
	StreetRonda:      {"rda", "ronda"},
	StreetCamino:     {"cm", "cno", "camino"},
	StreetCarretera:  {"ctra", "cra", "carretera"},
	StreetTravesia:   {"tr", "trva", "travesia"},
	StreetPasaje:     {"pje", "psje", "pasaje"},
	StreetCostanilla: {"cost", "costanilla"},
	StreetCuesta:     {"cta", "cuesta"},
	StreetBulevar:    {"blvr", "bulevar", "boulevard"},
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]string {
	idx := make(map[string]string)
	for canonical, aliases := range streetTypeAliases {
		for _, a := range aliases {
			idx[a] = canonical
		}
	}
	return idx
}

// jaroWinklerMin below this a misspelt type is not guessed
const jaroWinklerMin = 0.88

// CanonicalStreetType resolves a free-text street type ("Avda.", "C/", "Pza")
// to its canonical class. Misspellings ("Avnida") are resolved against the
// full class names with Jaro-Winkler; ok=false when nothing is close enough.
func CanonicalStreetType(raw string) (string, bool) {
	n := Normalize(raw)
	if n == "" {
		return "", false
	}
	if c, ok := aliasIndex[n]; ok {
		return c, true
	}
	// Short tokens are abbreviations; fuzzy-guessing them is noise
	if len(n) < 4 {
		return "", false
	}
	best, bestScore := "", 0.0
	for canonical, aliases := range streetTypeAliases {
		full := aliases[len(aliases)-1]
		if canonical == StreetBulevar {
			full = "bulevar"
		}
		score := smetrics.JaroWinkler(n, full, 0.7, 4)
		if score > bestScore {
			best, bestScore = canonical, score
		}
	}
	if bestScore >= jaroWinklerMin {
		return best, true
	}
	return "", false
}

// StreetTypesEquivalent reports whether two street types name the same
// class. Unknown spellings fall back to normalized equality.
func StreetTypesEquivalent(a, b string) bool {
	ca, okA := CanonicalStreetType(a)
	cb, okB := CanonicalStreetType(b)
	if okA && okB {
		return ca == cb
	}
	return Normalize(a) == Normalize(b)
}
