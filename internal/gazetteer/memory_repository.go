package gazetteer

import (
	"context"
	"sync"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/geo"
)

// MemoryRepository in-process gazetteer. Used by tests and small
// deployments that load the callejero from a JSON file at startup.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []models.GazetteerRecord
	byID    map[string]int
}

// NewMemoryRepository creates a repository holding records (prepared on insert)
func NewMemoryRepository(records ...models.GazetteerRecord) *MemoryRepository {
	m := &MemoryRepository{byID: make(map[string]int)}
	_, _ = m.Upsert(context.Background(), records)
	return m
}

func (m *MemoryRepository) SearchByExactMatch(ctx context.Context, c Criteria) ([]models.GazetteerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.GazetteerRecord
	for i := range m.records {
		if c.Matches(&m.records[i]) {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *MemoryRepository) SearchByFuzzyMatch(ctx context.Context, c Criteria, threshold float64) ([]models.GazetteerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// similarity per distinct street, not per portal
	simByStreet := make(map[string]float64)
	var out []models.GazetteerRecord
	for i := range m.records {
		r := &m.records[i]
		sim, ok := simByStreet[r.StreetNameNormalized]
		if !ok {
			sim = NameSimilarity(c, r)
			simByStreet[r.StreetNameNormalized] = sim
		}
		if sim >= threshold {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *MemoryRepository) SearchByGeographicProximity(ctx context.Context, lat, lon, radiusMeters float64) ([]models.GazetteerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	minLat, minLon, maxLat, maxLon := geo.BoundingBox(lat, lon, radiusMeters*1.01)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.GazetteerRecord
	for _, r := range m.records {
		if r.Latitude < minLat || r.Latitude > maxLat || r.Longitude < minLon || r.Longitude > maxLon {
			continue
		}
		if geo.HaversineMeters(lat, lon, r.Latitude, r.Longitude) <= radiusMeters+distanceEpsilon {
			out = append(out, r)
		}
	}
	return out, nil
}

// Upsert inserts or replaces by ID
func (m *MemoryRepository) Upsert(ctx context.Context, records []models.GazetteerRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		PrepareRecord(&r, "")
		if i, ok := m.byID[r.ID]; ok && r.ID != "" {
			m.records[i] = r
			continue
		}
		m.byID[r.ID] = len(m.records)
		m.records = append(m.records, r)
	}
	return len(records), nil
}

func (m *MemoryRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (m *MemoryRepository) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}
