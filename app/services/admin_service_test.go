package services

import (
	"context"
	"testing"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/gazetteer/gazetteertest"
	"github.com/dea-registry/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingIndex struct {
	built  int
	seeded int
}

func (r *recordingIndex) BuildIndexes() error { r.built++; return nil }

func (r *recordingIndex) SeedData(recs []models.GazetteerRecord) error {
	r.seeded += len(recs)
	return nil
}

func TestAdmin_ValidateGazetteerData(t *testing.T) {
	svc := NewAdminService(gazetteer.NewMemoryRepository(), nil, nil, nil, zaptest.NewLogger(t))

	assert.False(t, svc.ValidateGazetteerData(nil).Passed)

	good := gazetteertest.MadridSample()
	v := svc.ValidateGazetteerData(good)
	assert.True(t, v.Passed, v.Warnings)
	assert.Empty(t, v.Warnings)

	bad := []models.GazetteerRecord{
		good[0],
		good[0],
		{ID: "x", StreetName: "MAYOR", DistrictCode: 22, PostalCode: "2845", Latitude: 41.38, Longitude: 2.17},
		{StreetName: "", DistrictCode: 1, Latitude: 40.42, Longitude: -3.70},
	}
	v = svc.ValidateGazetteerData(bad)
	assert.False(t, v.Passed)
	assert.Contains(t, v.Warnings, "Id duplicado: gv-1")
	assert.Contains(t, v.Warnings, "Distrito 22 inválido en el índice 2")
	assert.Contains(t, v.Warnings, "Código postal '2845' inválido en el índice 2")
	assert.Contains(t, v.Warnings, "Falta el id en el índice 3")
	assert.Contains(t, v.Warnings, "Falta el nombre de vía en el índice 3")
	assert.Len(t, v.Warnings, 6)
}

func TestAdmin_SeedGazetteer(t *testing.T) {
	ctx := context.Background()
	repo := gazetteer.NewMemoryRepository()
	index := &recordingIndex{}
	validation := newValidationService(t)
	store := records.NewMemoryStore(models.DeaRecord{ID: "dea-1"})
	svc := NewAdminService(repo, index, validation, store, zaptest.NewLogger(t))

	data := gazetteertest.MadridSample()

	res, err := svc.SeedGazetteer(ctx, "2026-10", data, SeedOptions{DryRun: true, RebuildIndexes: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 0, res.RecordsWritten)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, "test", validation.GazetteerVersion())

	res, err = svc.SeedGazetteer(ctx, "2026-10", data, SeedOptions{RebuildIndexes: true})
	require.NoError(t, err)
	assert.Equal(t, len(data), res.RecordsWritten)
	assert.Equal(t, 2, res.IndexesBuilt)
	assert.Equal(t, 1, index.built)
	assert.Equal(t, len(data), index.seeded)
	assert.Equal(t, "2026-10", validation.GazetteerVersion())

	_, err = svc.SeedGazetteer(ctx, "2026-11", []models.GazetteerRecord{{ID: "bad"}}, SeedOptions{})
	assert.ErrorIs(t, err, ErrInvalidGazetteerData)
	assert.Equal(t, "2026-10", validation.GazetteerVersion())

	_, err = svc.SeedGazetteer(ctx, "", data, SeedOptions{})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	stats, err := svc.GetSystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), stats.GazetteerRecords)
	assert.Equal(t, "2026-10", stats.GazetteerVersion)
	assert.Equal(t, int64(1), stats.Preprocessing[models.PreprocessingPending])
	require.NotNil(t, stats.Cache)
	assert.Contains(t, stats.MemoryUsage, "alloc_mb")

	require.NoError(t, svc.InvalidateCache(ctx, true))
	require.NoError(t, svc.BuildIndexes(ctx))
	assert.Equal(t, 2, index.built)
}
