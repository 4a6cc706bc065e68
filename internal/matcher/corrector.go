package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/geo"
	"github.com/dea-registry/internal/normalizer"
	"go.uber.org/zap"
)

// Scoring constants of the corrector
const (
	numberPenaltyPerUnit = 0.05
	numberPenaltyMax     = 0.40
	positionPenalty      = 0.03
	exactNumberBonus     = 0.10
	streetFoundBonus     = 0.10
	missingNumberPenalty = 0.20 // official record without portal number
	confidenceFloor      = 0.10

	nearNumberDiff      = 2
	differentNumberDiff = 10
)

// Corrector rescores candidates of an already-resolved street and attaches
// correction warnings. Confidence never stays at 1.0 when the house number,
// position or other fields disagree with the official record.
type Corrector struct {
	coordinateTolerance float64
	logger              *zap.Logger
}

// NewCorrector creates a Corrector; coordinateTolerance in meters
func NewCorrector(coordinateTolerance float64, logger *zap.Logger) *Corrector {
	return &Corrector{coordinateTolerance: coordinateTolerance, logger: logger}
}

// Correct returns a rescored copy of candidates ordered by street similarity,
// then by house-number proximity within the same similarity.
// The base score of each candidate is its street similarity (1.0 for exact
// matches); the street bonus is added to it before any penalty.
func (c *Corrector) Correct(q models.AddressQuery, candidates []models.ScoredCandidate) []models.ScoredCandidate {
	out := make([]models.ScoredCandidate, len(candidates))
	copy(out, candidates)

	requested, _, hasRequested := normalizer.ParseHouseNumber(q.StreetNumber)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if !hasRequested {
			return false
		}
		return proximity(requested, out[i].Record.HouseNumber) < proximity(requested, out[j].Record.HouseNumber)
	})

	numberExists := false
	if hasRequested {
		for _, cand := range out {
			if cand.Record.HouseNumber != nil && *cand.Record.HouseNumber == requested {
				numberExists = true
				break
			}
		}
	}

	for i := range out {
		cand := &out[i]
		base := cand.Similarity
		if cand.MatchType == models.MatchTypeExact {
			base = 1.0
		}
		conf := math.Min(1.0, base+streetFoundBonus)

		if hasRequested {
			switch {
			case cand.Record.HouseNumber == nil:
				conf = math.Max(confidenceFloor, conf-missingNumberPenalty)
			case *cand.Record.HouseNumber != requested:
				diff := absInt(requested - *cand.Record.HouseNumber)
				penalty := math.Min(numberPenaltyMax, float64(diff)*numberPenaltyPerUnit)
				conf = math.Max(confidenceFloor, conf-penalty)
			}
		}

		conf = math.Max(confidenceFloor, conf-float64(i)*positionPenalty)

		if hasRequested && cand.Record.HouseNumber != nil && *cand.Record.HouseNumber == requested {
			conf = math.Min(1.0, conf+exactNumberBonus)
		}

		cand.Confidence = round4(conf)
		cand.Warnings = c.Warnings(q, cand.Record)
		if hasRequested && !numberExists {
			cand.Warnings = append(cand.Warnings, fmt.Sprintf("El número %d no existe en los datos oficiales de esta vía", requested))
		}

		c.logger.Debug("candidate rescored",
			zap.String("id", cand.Record.ID),
			zap.Int("position", i),
			zap.Float64("confidence", cand.Confidence))
	}
	return out
}

// Warnings non-blocking discrepancies between the query and an official record
func (c *Corrector) Warnings(q models.AddressQuery, rec models.GazetteerRecord) []string {
	var warnings []string

	if requested, _, ok := normalizer.ParseHouseNumber(q.StreetNumber); ok && rec.HouseNumber != nil && *rec.HouseNumber != requested {
		official := *rec.HouseNumber
		diff := absInt(requested - official)
		switch {
		case diff <= nearNumberDiff:
			warnings = append(warnings, fmt.Sprintf("El número %d es cercano al número oficial %d", requested, official))
		case diff <= differentNumberDiff:
			warnings = append(warnings, fmt.Sprintf("El número %d es diferente del número oficial %d", requested, official))
		default:
			warnings = append(warnings, fmt.Sprintf("El número %d es muy diferente del número oficial %d", requested, official))
		}
	}

	if pc := strings.TrimSpace(q.PostalCode); pc != "" && pc != rec.PostalCode {
		warnings = append(warnings, fmt.Sprintf("El código postal %s no coincide con el oficial %s", pc, rec.PostalCode))
	}

	if strings.TrimSpace(q.District) != "" {
		code := normalizer.ExtractDistrictNumber(q.District)
		switch {
		case code == 0:
			warnings = append(warnings, fmt.Sprintf("No se reconoce el distrito \"%s\"; el oficial es %s", q.District, normalizer.DistrictLabel(rec.DistrictCode)))
		case code != rec.DistrictCode:
			warnings = append(warnings, fmt.Sprintf("El distrito %s no coincide con el oficial %s", normalizer.DistrictLabel(code), normalizer.DistrictLabel(rec.DistrictCode)))
		}
	}

	if q.Coordinates != nil {
		d := geo.HaversineMeters(q.Coordinates.Latitude, q.Coordinates.Longitude, rec.Latitude, rec.Longitude)
		if d > c.coordinateTolerance {
			warnings = append(warnings, fmt.Sprintf("Las coordenadas están a %.0f m de la ubicación oficial", d))
		}
	}
	return warnings
}

// proximity |requested - n|, numberless records last
func proximity(requested int, n *int) int {
	if n == nil {
		return math.MaxInt32
	}
	return absInt(requested - *n)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
