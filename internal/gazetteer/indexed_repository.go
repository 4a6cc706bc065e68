package gazetteer

import (
	"context"

	"github.com/dea-registry/app/models"
	"go.uber.org/zap"
)

// CandidateIndex external full-text index over the same records
// (search.GazetteerSearcher in production)
type CandidateIndex interface {
	FuzzyCandidates(ctx context.Context, name string, limit int) ([]models.GazetteerRecord, error)
	NearbyCandidates(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.GazetteerRecord, error)
}

// IndexedRepository serves fuzzy and geo lookups from a CandidateIndex and
// falls back to the primary backend when the index fails or returns nothing.
// Exact lookups always go to the primary backend.
type IndexedRepository struct {
	Backend
	index  CandidateIndex
	limit  int
	logger *zap.Logger
}

// NewIndexedRepository wraps primary with index
func NewIndexedRepository(primary Backend, index CandidateIndex, limit int, logger *zap.Logger) *IndexedRepository {
	if limit <= 0 {
		limit = 200
	}
	return &IndexedRepository{Backend: primary, index: index, limit: limit, logger: logger}
}

func (r *IndexedRepository) SearchByFuzzyMatch(ctx context.Context, c Criteria, threshold float64) ([]models.GazetteerRecord, error) {
	records, err := r.index.FuzzyCandidates(ctx, c.NameNormalized, r.limit)
	if err == nil && len(records) > 0 {
		return records, nil
	}
	if err != nil {
		r.logger.Warn("search index fuzzy lookup failed, using primary backend", zap.Error(err))
	}
	return r.Backend.SearchByFuzzyMatch(ctx, c, threshold)
}

func (r *IndexedRepository) SearchByGeographicProximity(ctx context.Context, lat, lon, radiusMeters float64) ([]models.GazetteerRecord, error) {
	records, err := r.index.NearbyCandidates(ctx, lat, lon, radiusMeters, r.limit)
	if err == nil && len(records) > 0 {
		return records, nil
	}
	if err != nil {
		r.logger.Warn("search index geo lookup failed, using primary backend", zap.Error(err))
	}
	return r.Backend.SearchByGeographicProximity(ctx, lat, lon, radiusMeters)
}
