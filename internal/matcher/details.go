package matcher

import (
	"fmt"
	"strings"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/geo"
	"github.com/dea-registry/internal/normalizer"
	"github.com/dea-registry/internal/similarity"
)

// The constructors below are the only place FieldValidation values are
// built: NeedsCorrection always comes from the comparison next to it.
// A missing input with an official value available needs correction
// (the field gets filled in); a missing official value never does.

func streetNameValidation(input, official string, okSimilarity float64) models.FieldValidation {
	sim := similarity.StreetName(input, official)
	return models.FieldValidation{
		Input:           input,
		Official:        official,
		Similarity:      sim,
		NeedsCorrection: sim < okSimilarity,
	}
}

func streetTypeValidation(input, official string) models.FieldValidation {
	v := models.FieldValidation{Input: input, Official: official}
	if official == "" {
		return v
	}
	if strings.TrimSpace(input) != "" && normalizer.StreetTypesEquivalent(input, official) {
		v.Similarity = 1
		return v
	}
	v.NeedsCorrection = true
	return v
}

func streetNumberValidation(input string, official *int) models.FieldValidation {
	v := models.FieldValidation{Input: input}
	if official == nil {
		return v
	}
	v.Official = fmt.Sprintf("%d", *official)
	if n, _, ok := normalizer.ParseHouseNumber(input); ok && n == *official {
		v.Similarity = 1
		return v
	}
	v.NeedsCorrection = true
	return v
}

// postalCodeValidation literal string equality, "28045" != "2845"
func postalCodeValidation(input, official string) models.FieldValidation {
	input = strings.TrimSpace(input)
	v := models.FieldValidation{Input: input, Official: official}
	if official == "" {
		return v
	}
	if input == official {
		v.Similarity = 1
		return v
	}
	v.NeedsCorrection = true
	return v
}

func districtValidation(input string, officialCode int) models.FieldValidation {
	v := models.FieldValidation{Input: input, Official: normalizer.DistrictLabel(officialCode)}
	if officialCode == 0 {
		return v
	}
	if normalizer.ExtractDistrictNumber(input) == officialCode {
		v.Similarity = 1
		return v
	}
	v.NeedsCorrection = true
	return v
}

func coordinateValidation(input *models.Coordinates, official models.Coordinates, tolerance float64) models.CoordinateValidation {
	off := official
	v := models.CoordinateValidation{Input: input, Official: &off}
	if input == nil {
		v.NeedsCorrection = true
		return v
	}
	d := geo.HaversineMeters(input.Latitude, input.Longitude, official.Latitude, official.Longitude)
	v.DistanceMeters = &d
	v.NeedsReview = d > tolerance
	v.NeedsCorrection = v.NeedsReview
	return v
}

// buildDetails per-field comparison against the best candidate. Without a
// candidate only the inputs are echoed back.
func buildDetails(q models.AddressQuery, best *models.ScoredCandidate, nameOK, coordTolerance float64) models.ValidationDetails {
	if best == nil {
		return models.ValidationDetails{
			StreetName:   models.FieldValidation{Input: q.StreetName},
			StreetType:   models.FieldValidation{Input: q.StreetType},
			StreetNumber: models.FieldValidation{Input: q.StreetNumber},
			PostalCode:   models.FieldValidation{Input: q.PostalCode},
			District:     models.FieldValidation{Input: q.District},
			Coordinates:  models.CoordinateValidation{Input: q.Coordinates},
		}
	}
	rec := best.Record
	return models.ValidationDetails{
		StreetName:   streetNameValidation(q.StreetName, rec.StreetName, nameOK),
		StreetType:   streetTypeValidation(q.StreetType, rec.StreetClass),
		StreetNumber: streetNumberValidation(q.StreetNumber, rec.HouseNumber),
		PostalCode:   postalCodeValidation(q.PostalCode, rec.PostalCode),
		District:     districtValidation(q.District, rec.DistrictCode),
		Coordinates:  coordinateValidation(q.Coordinates, rec.Coordinates(), coordTolerance),
	}
}

// deriveStatus invalid iff !IsValid; valid only for exact matches at or
// above validatedConfidence with nothing to correct.
func deriveStatus(sr models.SearchResult, d models.ValidationDetails, validatedConfidence float64) models.OverallStatus {
	switch {
	case !sr.IsValid:
		return models.StatusInvalid
	case sr.Confidence >= validatedConfidence && sr.MatchType == models.MatchTypeExact && !d.AnyCorrection():
		return models.StatusValid
	default:
		return models.StatusNeedsReview
	}
}

func recommendedActions(status models.OverallStatus, d models.ValidationDetails) []string {
	if status == models.StatusInvalid {
		return []string{
			"Verificar la dirección manualmente",
			"Consultar el callejero oficial del Ayuntamiento de Madrid",
		}
	}
	var actions []string
	if d.StreetName.NeedsCorrection {
		actions = append(actions, fmt.Sprintf("Corregir el nombre de la vía a \"%s\"", d.StreetName.Official))
	}
	if d.StreetType.NeedsCorrection {
		actions = append(actions, fmt.Sprintf("Corregir el tipo de vía a %s", d.StreetType.Official))
	}
	if d.StreetNumber.NeedsCorrection {
		actions = append(actions, fmt.Sprintf("Revisar el número de portal: el oficial más cercano es el %s", d.StreetNumber.Official))
	}
	if d.PostalCode.NeedsCorrection {
		actions = append(actions, fmt.Sprintf("Actualizar el código postal a %s", d.PostalCode.Official))
	}
	if d.District.NeedsCorrection {
		actions = append(actions, fmt.Sprintf("Actualizar el distrito a %s", d.District.Official))
	}
	switch {
	case d.Coordinates.Input == nil && d.Coordinates.Official != nil:
		actions = append(actions, "Añadir las coordenadas oficiales de la dirección")
	case d.Coordinates.NeedsReview && d.Coordinates.DistanceMeters != nil:
		actions = append(actions, fmt.Sprintf("Revisar las coordenadas: están a %.0f m de la ubicación oficial", *d.Coordinates.DistanceMeters))
	}
	if len(actions) == 0 {
		if status == models.StatusValid {
			return []string{"Dirección validada, no se requiere ninguna acción"}
		}
		actions = append(actions, "Confirmar la dirección sugerida")
	}
	return actions
}
