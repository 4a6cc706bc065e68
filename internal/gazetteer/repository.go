// Package gazetteer gives read access to the official Madrid callejero.
//
// Backends implement AddressRepository and may fail with any I/O error.
// Store wraps a backend, scores its results and never returns an error to
// the matching pipeline: a failed lookup is logged and degrades to an
// empty candidate list.
package gazetteer

import (
	"context"
	"strings"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/normalizer"
)

// Criteria lookup keys, already normalized
type Criteria struct {
	StreetClass    string // canonical class ("CALLE"), empty matches any
	NameNormalized string // normalizer.Normalize(name)
	NameKey        string // normalizer.NormalizeStreetName(name)
	HouseNumber    *int
	PostalCode     string
	DistrictCode   int // 0 matches any
}

// CriteriaFromQuery builds lookup keys from user input. Unparseable numbers
// ("s/n") and unresolved districts are left open.
func CriteriaFromQuery(q models.AddressQuery) Criteria {
	c := Criteria{
		NameNormalized: normalizer.Normalize(q.StreetName),
		NameKey:        normalizer.NormalizeStreetName(q.StreetName),
		PostalCode:     strings.TrimSpace(q.PostalCode),
		DistrictCode:   normalizer.ExtractDistrictNumber(q.District),
	}
	if strings.TrimSpace(q.StreetType) != "" {
		if canonical, ok := normalizer.CanonicalStreetType(q.StreetType); ok {
			c.StreetClass = canonical
		} else {
			c.StreetClass = strings.ToUpper(normalizer.Normalize(q.StreetType))
		}
	}
	if n, _, ok := normalizer.ParseHouseNumber(q.StreetNumber); ok {
		c.HouseNumber = &n
	}
	return c
}

// Matches exact-match predicate shared by the in-process backends
func (c Criteria) Matches(r *models.GazetteerRecord) bool {
	if c.NameKey == "" || r.StreetNameKey != c.NameKey {
		return false
	}
	if c.StreetClass != "" && r.StreetClass != c.StreetClass {
		return false
	}
	if c.HouseNumber != nil && (r.HouseNumber == nil || *r.HouseNumber != *c.HouseNumber) {
		return false
	}
	if c.PostalCode != "" && r.PostalCode != c.PostalCode {
		return false
	}
	if c.DistrictCode != 0 && r.DistrictCode != c.DistrictCode {
		return false
	}
	return true
}

// AddressRepository raw lookups against a gazetteer backend.
// SearchByFuzzyMatch returns a candidate pool; the final similarity
// filter and ranking happen in Store.
type AddressRepository interface {
	SearchByExactMatch(ctx context.Context, c Criteria) ([]models.GazetteerRecord, error)
	SearchByFuzzyMatch(ctx context.Context, c Criteria, threshold float64) ([]models.GazetteerRecord, error)
	SearchByGeographicProximity(ctx context.Context, lat, lon, radiusMeters float64) ([]models.GazetteerRecord, error)
}

// Loader write side used by seeding and the admin endpoints
type Loader interface {
	Upsert(ctx context.Context, records []models.GazetteerRecord) (int, error)
	EnsureIndexes(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// Backend full capability set of a gazetteer backend
type Backend interface {
	AddressRepository
	Loader
}

// PrepareRecord fills the derived fields before a record is stored
func PrepareRecord(r *models.GazetteerRecord, version string) {
	r.StreetClass = strings.ToUpper(strings.TrimSpace(r.StreetClass))
	if canonical, ok := normalizer.CanonicalStreetType(r.StreetClass); ok {
		r.StreetClass = canonical
	}
	r.StreetNameNormalized = normalizer.Normalize(r.StreetName)
	r.StreetNameKey = normalizer.NormalizeStreetName(r.StreetName)
	r.PostalCode = strings.TrimSpace(r.PostalCode)
	if r.DistrictName == "" {
		r.DistrictName = normalizer.DistrictName(r.DistrictCode)
	}
	r.Location = models.NewGeoPoint(r.Latitude, r.Longitude)
	if version != "" {
		r.GazetteerVersion = version
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
}
