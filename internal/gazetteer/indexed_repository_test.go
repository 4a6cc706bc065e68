package gazetteer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/gazetteer/gazetteertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeIndex struct {
	fuzzy  []models.GazetteerRecord
	nearby []models.GazetteerRecord
	err    error
	calls  int
}

func (f *fakeIndex) FuzzyCandidates(ctx context.Context, name string, limit int) ([]models.GazetteerRecord, error) {
	f.calls++
	return f.fuzzy, f.err
}

func (f *fakeIndex) NearbyCandidates(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.GazetteerRecord, error) {
	f.calls++
	return f.nearby, f.err
}

func TestIndexedRepository_ServesFromIndex(t *testing.T) {
	only := gazetteertest.Record("idx-1", "CALLE", "DE PRUEBA", 1, "28001", 4, 40.43, -3.68)
	index := &fakeIndex{fuzzy: []models.GazetteerRecord{only}, nearby: []models.GazetteerRecord{only}}
	repo := gazetteer.NewIndexedRepository(gazetteertest.NewMemory(), index, 0, zaptest.NewLogger(t))
	ctx := context.Background()

	got, err := repo.SearchByFuzzyMatch(ctx, gazetteer.Criteria{NameNormalized: "prueba"}, 0.5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "idx-1", got[0].ID)

	got, err = repo.SearchByGeographicProximity(ctx, 40.43, -3.68, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, index.calls)

	// exact lookups bypass the index
	exact, err := repo.SearchByExactMatch(ctx, gazetteer.CriteriaFromQuery(models.AddressQuery{StreetName: "Gran Via", StreetNumber: "1"}))
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "gv-1", exact[0].ID)
	assert.Equal(t, 2, index.calls)
}

func TestIndexedRepository_FallsBackToPrimary(t *testing.T) {
	ctx := context.Background()
	criteria := gazetteer.CriteriaFromQuery(models.AddressQuery{StreetName: "Gran Via"})

	for name, index := range map[string]*fakeIndex{
		"index error": {err: errors.New("meilisearch down")},
		"index empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			repo := gazetteer.NewIndexedRepository(gazetteertest.NewMemory(), index, 10, zaptest.NewLogger(t))

			fuzzy, err := repo.SearchByFuzzyMatch(ctx, criteria, 0.5)
			require.NoError(t, err)
			assert.NotEmpty(t, fuzzy)

			nearby, err := repo.SearchByGeographicProximity(ctx, 40.4200, -3.7025, 50)
			require.NoError(t, err)
			assert.NotEmpty(t, nearby)
		})
	}
}

func TestIndexedRepository_LoaderPassesThrough(t *testing.T) {
	repo := gazetteer.NewIndexedRepository(gazetteertest.NewMemory(), &fakeIndex{}, 10, zaptest.NewLogger(t))
	ctx := context.Background()

	before, err := repo.Count(ctx)
	require.NoError(t, err)

	n, err := repo.Upsert(ctx, []models.GazetteerRecord{gazetteertest.Record("new-1", "CALLE", "NUEVA", 1, "28001", 4, 40.43, -3.68)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}
