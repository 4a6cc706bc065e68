// Package matcher resolves a user-submitted address against the gazetteer
// and explains every discrepancy with the official record.
package matcher

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/normalizer"
	"go.uber.org/zap"
)

// Cross-reference penalties of the full-criteria tier
const (
	postalMismatchPenalty   = 0.3
	districtMismatchPenalty = 0.3
	typeMismatchPenalty     = 0.2

	geoTextWeight     = 0.5
	geoCoherenceBonus = 0.3
)

// Tier names, reported in logs
const (
	TierStreetExact = "street_exact"
	TierStreetFuzzy = "street_fuzzy"
	TierFullFuzzy   = "full_fuzzy"
	TierGeographic  = "geographic"
	TierNone        = "none"
)

const (
	msgNoMatch        = "No se encontró ninguna dirección oficial con confianza suficiente"
	msgAutoCorrected  = "La vía se encontró por similitud; los demás campos se han corregido con los datos oficiales"
	msgPartialMatch   = "Coincidencia parcial: la dirección no coincide en todos los campos con los datos oficiales"
	msgGeographicOnly = "Dirección sugerida por proximidad a las coordenadas indicadas"
)

// CandidateSource scored gazetteer lookups (gazetteer.Store)
type CandidateSource interface {
	ExactMatch(ctx context.Context, q models.AddressQuery) []models.ScoredCandidate
	FuzzyMatch(ctx context.Context, q models.AddressQuery, threshold float64) []models.ScoredCandidate
	GeoProximity(ctx context.Context, lat, lon, radiusMeters float64) []models.ScoredCandidate
}

// AddressMatcher runs the search tiers in priority order and builds the
// per-field validation of the best candidate.
type AddressMatcher struct {
	source    CandidateSource
	corrector *Corrector
	cfg       config.MatchingThresholds
	logger    *zap.Logger
}

// NewAddressMatcher creates an AddressMatcher
func NewAddressMatcher(source CandidateSource, cfg config.MatchingThresholds, logger *zap.Logger) *AddressMatcher {
	return &AddressMatcher{
		source:    source,
		corrector: NewCorrector(cfg.CoordinateToleranceMeters, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

type tierResult struct {
	tier       string
	matchType  models.MatchType
	candidates []models.ScoredCandidate
	warnings   []string
}

// Validate resolves q. Tiers short-circuit: street exact, street fuzzy,
// full-criteria fuzzy, then geographic when coordinates were given.
func (am *AddressMatcher) Validate(ctx context.Context, q models.AddressQuery) models.ComprehensiveAddressValidation {
	start := time.Now()
	q.StreetName = strings.TrimSpace(q.StreetName)

	res := am.search(ctx, q)

	sr := models.SearchResult{
		MatchType:   res.matchType,
		Suggestions: []models.ScoredCandidate{},
		Errors:      []string{},
		Warnings:    []string{},
	}
	if len(res.candidates) > 0 {
		sr.Confidence = res.candidates[0].Confidence
	}
	sr.IsValid = len(res.candidates) > 0 && sr.Confidence >= am.cfg.ValidConfidence

	var best *models.ScoredCandidate
	if sr.IsValid {
		sr.Suggestions = res.candidates
		best = &sr.Suggestions[0]
		sr.Warnings = append(sr.Warnings, res.warnings...)
		sr.Warnings = append(sr.Warnings, best.Warnings...)
	} else {
		sr.MatchType = models.MatchTypeNone
		sr.Errors = append(sr.Errors, msgNoMatch)
	}

	details := buildDetails(q, best, am.cfg.NameSimilarityOK, am.cfg.CoordinateToleranceMeters)
	status := deriveStatus(sr, details, am.cfg.ValidatedStatusConfidence)

	am.logger.Info("address validated",
		zap.String("street", q.StreetName),
		zap.String("tier", res.tier),
		zap.String("status", string(status)),
		zap.Float64("confidence", sr.Confidence),
		zap.Int("suggestions", len(sr.Suggestions)),
		zap.Duration("took", time.Since(start)))

	return models.ComprehensiveAddressValidation{
		SearchResult:       sr,
		ValidationDetails:  details,
		OverallStatus:      status,
		RecommendedActions: recommendedActions(status, details),
	}
}

func (am *AddressMatcher) search(ctx context.Context, q models.AddressQuery) tierResult {
	if q.StreetName == "" {
		return tierResult{tier: TierNone, matchType: models.MatchTypeNone}
	}

	// 1. street name + type, exact
	if exact := am.source.ExactMatch(ctx, q.StreetOnly()); len(exact) > 0 {
		return tierResult{
			tier:       TierStreetExact,
			matchType:  models.MatchTypeExact,
			candidates: am.corrector.Correct(q, exact),
		}
	}

	// 2. street name + type, fuzzy. The number only orders the pool.
	streetQuery := q.StreetOnly()
	streetQuery.StreetNumber = q.StreetNumber
	fuzzy := am.filterStreetCandidates(q, am.source.FuzzyMatch(ctx, streetQuery, am.cfg.FuzzyThreshold))
	if len(fuzzy) > 0 {
		return tierResult{
			tier:       TierStreetFuzzy,
			matchType:  models.MatchTypeFuzzy,
			candidates: am.corrector.Correct(q, fuzzy),
			warnings:   []string{msgAutoCorrected},
		}
	}

	// 3. every field, with cross-reference penalties
	if full := am.fullCriteria(q, am.source.FuzzyMatch(ctx, q, am.cfg.FuzzyThreshold)); len(full) > 0 {
		return tierResult{
			tier:       TierFullFuzzy,
			matchType:  models.MatchTypePartial,
			candidates: full,
			warnings:   []string{msgPartialMatch},
		}
	}

	// 4. coordinates
	if q.HasCoordinates() {
		if near := am.geographic(ctx, q); len(near) > 0 {
			return tierResult{
				tier:       TierGeographic,
				matchType:  models.MatchTypeGeographic,
				candidates: near,
				warnings:   []string{msgGeographicOnly},
			}
		}
	}

	return tierResult{tier: TierNone, matchType: models.MatchTypeNone}
}

// filterStreetCandidates permissive street validator of tier 2
func (am *AddressMatcher) filterStreetCandidates(q models.AddressQuery, candidates []models.ScoredCandidate) []models.ScoredCandidate {
	hasType := strings.TrimSpace(q.StreetType) != ""
	out := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity < am.cfg.StreetValidatorMinSimilarity {
			continue
		}
		if hasType && !normalizer.StreetTypesEquivalent(q.StreetType, c.Record.StreetClass) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (am *AddressMatcher) fullCriteria(q models.AddressQuery, candidates []models.ScoredCandidate) []models.ScoredCandidate {
	postal := strings.TrimSpace(q.PostalCode)
	district := normalizer.ExtractDistrictNumber(q.District)
	hasType := strings.TrimSpace(q.StreetType) != ""

	out := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := c.Confidence
		if postal != "" && postal != c.Record.PostalCode {
			score -= postalMismatchPenalty
		}
		if district != 0 && district != c.Record.DistrictCode {
			score -= districtMismatchPenalty
		}
		typeMismatch := hasType && !normalizer.StreetTypesEquivalent(q.StreetType, c.Record.StreetClass)
		if typeMismatch {
			score -= typeMismatchPenalty
		}
		if score < am.cfg.FullMatchMinScore {
			continue
		}
		c.Confidence = round4(score)
		c.MatchType = models.MatchTypePartial
		c.Warnings = am.corrector.Warnings(q, c.Record)
		if typeMismatch {
			c.Warnings = append(c.Warnings, "El tipo de vía "+q.StreetType+" no coincide con el oficial "+c.Record.StreetClass)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func (am *AddressMatcher) geographic(ctx context.Context, q models.AddressQuery) []models.ScoredCandidate {
	crit := gazetteer.CriteriaFromQuery(q)
	postal := strings.TrimSpace(q.PostalCode)

	near := am.source.GeoProximity(ctx, q.Coordinates.Latitude, q.Coordinates.Longitude, am.cfg.GeoRadiusMeters)
	out := make([]models.ScoredCandidate, 0, len(near))
	for _, c := range near {
		textSim := gazetteer.NameSimilarity(crit, &c.Record)
		coherent := postal != "" && postal == c.Record.PostalCode &&
			crit.DistrictCode != 0 && crit.DistrictCode == c.Record.DistrictCode
		if textSim < am.cfg.GeoMinTextSimilarity && !coherent {
			continue
		}
		boost := textSim * geoTextWeight
		if coherent {
			boost += geoCoherenceBonus
		}
		c.Similarity = textSim
		c.Confidence = round4(math.Min(1.0, c.Confidence+boost))
		c.Warnings = am.corrector.Warnings(q, c.Record)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
