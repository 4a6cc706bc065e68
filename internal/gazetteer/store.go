package gazetteer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/geo"
	"github.com/dea-registry/internal/similarity"
	"go.uber.org/zap"
)

// distanceEpsilon absorbs float noise on the radius boundary
const distanceEpsilon = 1e-6

// Store scored, failure-tolerant lookups over an AddressRepository
type Store struct {
	repo   AddressRepository
	cfg    config.MatchingThresholds
	logger *zap.Logger
}

// NewStore creates a Store
func NewStore(repo AddressRepository, cfg config.MatchingThresholds, logger *zap.Logger) *Store {
	return &Store{repo: repo, cfg: cfg, logger: logger}
}

// ExactMatch every result has confidence 1.0
func (s *Store) ExactMatch(ctx context.Context, q models.AddressQuery) []models.ScoredCandidate {
	c := CriteriaFromQuery(q)
	if c.NameKey == "" {
		return []models.ScoredCandidate{}
	}
	records := s.guard("exact", func() ([]models.GazetteerRecord, error) {
		return s.repo.SearchByExactMatch(ctx, c)
	})
	sort.SliceStable(records, func(i, j int) bool {
		return numberOrZero(records[i].HouseNumber) < numberOrZero(records[j].HouseNumber)
	})
	out := make([]models.ScoredCandidate, 0, len(records))
	for _, r := range records {
		out = append(out, models.ScoredCandidate{
			Record:     r,
			Confidence: 1.0,
			MatchType:  models.MatchTypeExact,
			Similarity: 1.0,
		})
	}
	return out
}

// FuzzyMatch keeps candidates whose street-name similarity reaches threshold
// (config default when <= 0). A matching house number adds a bonus. Ordered
// by score, then distance to the requested number, then number ascending.
func (s *Store) FuzzyMatch(ctx context.Context, q models.AddressQuery, threshold float64) []models.ScoredCandidate {
	if threshold <= 0 {
		threshold = s.cfg.FuzzyThreshold
	}
	c := CriteriaFromQuery(q)
	if c.NameNormalized == "" {
		return []models.ScoredCandidate{}
	}
	records := s.guard("fuzzy", func() ([]models.GazetteerRecord, error) {
		return s.repo.SearchByFuzzyMatch(ctx, c, threshold)
	})

	type scored struct {
		cand  models.ScoredCandidate
		score float64
	}
	pool := make([]scored, 0, len(records))
	for _, r := range records {
		sim := NameSimilarity(c, &r)
		if sim < threshold {
			continue
		}
		score := sim
		if c.HouseNumber != nil && r.HouseNumber != nil && *r.HouseNumber == *c.HouseNumber {
			score += s.cfg.FuzzyNumberBonus
		}
		pool = append(pool, scored{
			cand: models.ScoredCandidate{
				Record:     r,
				Confidence: math.Min(1.0, score),
				MatchType:  models.MatchTypeFuzzy,
				Similarity: sim,
			},
			score: score,
		})
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		pi := numberDistance(c.HouseNumber, pool[i].cand.Record.HouseNumber)
		pj := numberDistance(c.HouseNumber, pool[j].cand.Record.HouseNumber)
		if pi != pj {
			return pi < pj
		}
		return numberOrMax(pool[i].cand.Record.HouseNumber) < numberOrMax(pool[j].cand.Record.HouseNumber)
	})

	limit := s.cfg.MaxFuzzyResults
	if limit <= 0 || limit > len(pool) {
		limit = len(pool)
	}
	out := make([]models.ScoredCandidate, 0, limit)
	for _, p := range pool[:limit] {
		out = append(out, p.cand)
	}
	return out
}

// GeoProximity records within radiusMeters (config default when <= 0),
// confidence 1 - d/r, nearest first.
func (s *Store) GeoProximity(ctx context.Context, lat, lon, radiusMeters float64) []models.ScoredCandidate {
	if radiusMeters <= 0 {
		radiusMeters = s.cfg.GeoRadiusMeters
	}
	records := s.guard("geo", func() ([]models.GazetteerRecord, error) {
		return s.repo.SearchByGeographicProximity(ctx, lat, lon, radiusMeters)
	})
	out := make([]models.ScoredCandidate, 0, len(records))
	for _, r := range records {
		d := geo.HaversineMeters(lat, lon, r.Latitude, r.Longitude)
		if d > radiusMeters+distanceEpsilon {
			continue
		}
		dist := d
		out = append(out, models.ScoredCandidate{
			Record:         r,
			Confidence:     math.Max(0, 1-d/radiusMeters),
			MatchType:      models.MatchTypeGeographic,
			DistanceMeters: &dist,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceMeters < *out[j].DistanceMeters
	})
	return out
}

// guard runs a backend call, converting errors and panics into an empty result
func (s *Store) guard(op string, fn func() ([]models.GazetteerRecord, error)) (records []models.GazetteerRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("gazetteer lookup panicked", zap.String("op", op), zap.String("panic", fmt.Sprint(r)))
			records = nil
		}
	}()
	records, err := fn()
	if err != nil {
		s.logger.Warn("gazetteer lookup failed, returning no candidates", zap.String("op", op), zap.Error(err))
		return nil
	}
	return records
}

// NameSimilarity best of plain and article-stripped comparisons
func NameSimilarity(c Criteria, r *models.GazetteerRecord) float64 {
	plain := similarity.Ratio(c.NameNormalized, r.StreetNameNormalized)
	if c.NameKey == "" || r.StreetNameKey == "" {
		return plain
	}
	return math.Max(plain, similarity.Ratio(c.NameKey, r.StreetNameKey))
}

func numberOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func numberOrMax(n *int) int {
	if n == nil {
		return math.MaxInt32
	}
	return *n
}

// numberDistance |requested - candidate|, 0 when nothing was requested
func numberDistance(requested, candidate *int) int {
	if requested == nil {
		return 0
	}
	if candidate == nil {
		return math.MaxInt32
	}
	d := *requested - *candidate
	if d < 0 {
		d = -d
	}
	return d
}
