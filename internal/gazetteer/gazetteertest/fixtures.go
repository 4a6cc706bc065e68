// Package gazetteertest sample callejero records and failing backends for tests.
package gazetteertest

import (
	"context"
	"errors"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer"
)

// ErrBackendDown returned by FailingRepository
var ErrBackendDown = errors.New("gazetteer backend unavailable")

func rec(id, class, name string, number int, postal string, district int, lat, lon float64) models.GazetteerRecord {
	r := models.GazetteerRecord{
		ID:           id,
		SegmentID:    "seg-" + id,
		StreetClass:  class,
		StreetName:   name,
		PostalCode:   postal,
		DistrictCode: district,
		Latitude:     lat,
		Longitude:    lon,
	}
	if number > 0 {
		r.HouseNumber = models.IntPtr(number)
	}
	gazetteer.PrepareRecord(&r, "test")
	return r
}

// MadridSample small slice of the Madrid callejero
func MadridSample() []models.GazetteerRecord {
	return []models.GazetteerRecord{
		rec("gv-1", "CALLE", "GRAN VÍA", 1, "28013", 1, 40.4200, -3.7025),
		rec("gv-2", "CALLE", "GRAN VÍA", 2, "28013", 1, 40.4199, -3.7020),
		rec("gv-3", "CALLE", "GRAN VÍA", 3, "28013", 1, 40.4201, -3.7030),
		rec("gv-10", "CALLE", "GRAN VÍA", 10, "28013", 1, 40.4196, -3.7012),
		rec("gv-25", "CALLE", "GRAN VÍA", 25, "28013", 1, 40.4203, -3.7045),
		rec("chopera-2", "PASEO", "DE LA CHOPERA", 2, "28045", 2, 40.3947, -3.6980),
		rec("chopera-41", "PASEO", "DE LA CHOPERA", 41, "28045", 2, 40.3920, -3.6985),
		rec("castellana-100", "PASEO", "DE LA CASTELLANA", 100, "28046", 5, 40.4405, -3.6905),
		rec("alcala-50", "CALLE", "DE ALCALÁ", 50, "28014", 1, 40.4190, -3.6955),
		rec("cordoba-15", "AVENIDA", "DE CÓRDOBA", 15, "28026", 12, 40.3820, -3.7010),
		rec("mayor-1", "PLAZA", "MAYOR", 1, "28012", 1, 40.4155, -3.7074),
	}
}

// NewMemory in-memory backend loaded with MadridSample plus extra records
func NewMemory(extra ...models.GazetteerRecord) *gazetteer.MemoryRepository {
	return gazetteer.NewMemoryRepository(append(MadridSample(), extra...)...)
}

// Record builds a single prepared record
func Record(id, class, name string, number int, postal string, district int, lat, lon float64) models.GazetteerRecord {
	return rec(id, class, name, number, postal, district, lat, lon)
}

// FailingRepository every lookup fails
type FailingRepository struct{}

func (FailingRepository) SearchByExactMatch(context.Context, gazetteer.Criteria) ([]models.GazetteerRecord, error) {
	return nil, ErrBackendDown
}

func (FailingRepository) SearchByFuzzyMatch(context.Context, gazetteer.Criteria, float64) ([]models.GazetteerRecord, error) {
	return nil, ErrBackendDown
}

func (FailingRepository) SearchByGeographicProximity(context.Context, float64, float64, float64) ([]models.GazetteerRecord, error) {
	return nil, ErrBackendDown
}

// PanickingRepository every lookup panics
type PanickingRepository struct{}

func (PanickingRepository) SearchByExactMatch(context.Context, gazetteer.Criteria) ([]models.GazetteerRecord, error) {
	panic("index out of range")
}

func (PanickingRepository) SearchByFuzzyMatch(context.Context, gazetteer.Criteria, float64) ([]models.GazetteerRecord, error) {
	panic("index out of range")
}

func (PanickingRepository) SearchByGeographicProximity(context.Context, float64, float64, float64) ([]models.GazetteerRecord, error) {
	panic("index out of range")
}
