package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpdateRecordFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(models.DeaRecord{ID: "dea-1", StreetName: "Gran Bia", PostalCode: "28000"})

	lat, lon := 40.42, -3.7025
	err := s.UpdateRecordFields(ctx, "dea-1", map[string]interface{}{
		models.FieldStreetName:              "GRAN VÍA",
		models.FieldPostalCode:              "28013",
		models.FieldLatitude:                lat,
		models.FieldLongitude:               lon,
		models.FieldAddressValidationStatus: models.StatusValid,
	})
	require.NoError(t, err)

	r, err := s.FindRecordByID(ctx, "dea-1")
	require.NoError(t, err)
	assert.Equal(t, "GRAN VÍA", r.StreetName)
	assert.Equal(t, "28013", r.PostalCode)
	require.NotNil(t, r.Latitude)
	assert.Equal(t, lat, *r.Latitude)
	assert.Equal(t, models.StatusValid, r.AddressValidationStatus)
	assert.Equal(t, models.PreprocessingPending, r.PreprocessingStatus)

	err = s.UpdateRecordFields(ctx, "dea-1", map[string]interface{}{"name": "x"})
	assert.True(t, errors.Is(err, ErrUnknownField))

	err = s.UpdateRecordFields(ctx, "missing", map[string]interface{}{models.FieldPostalCode: "28013"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStore_ProgressVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := &models.StepValidationProgress{RecordID: "dea-1", CurrentStep: 1, CreatedAt: time.Now()}
	require.NoError(t, s.WriteProgress(ctx, p, 0))
	assert.Equal(t, int64(1), p.Version)

	// second create loses
	assert.ErrorIs(t, s.WriteProgress(ctx, &models.StepValidationProgress{RecordID: "dea-1"}, 0), ErrProgressConflict)

	a, err := s.ReadProgress(ctx, "dea-1")
	require.NoError(t, err)
	b, err := s.ReadProgress(ctx, "dea-1")
	require.NoError(t, err)

	a.CurrentStep = 2
	require.NoError(t, s.WriteProgress(ctx, a, 1))
	b.CurrentStep = 3
	assert.ErrorIs(t, s.WriteProgress(ctx, b, 1), ErrProgressConflict)

	got, err := s.ReadProgress(ctx, "dea-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStep)
	assert.Equal(t, int64(2), got.Version)

	// reads are copies
	got.Steps[0].Status = models.StepStatusCompleted
	again, _ := s.ReadProgress(ctx, "dea-1")
	assert.NotEqual(t, models.StepStatusCompleted, again.Steps[0].Status)

	require.NoError(t, s.DeleteProgress(ctx, "dea-1"))
	_, err = s.ReadProgress(ctx, "dea-1")
	assert.ErrorIs(t, err, ErrProgressNotFound)
	assert.ErrorIs(t, s.DeleteProgress(ctx, "dea-1"), ErrProgressNotFound)
}

func TestMemoryStore_ListByPreprocessingStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(
		models.DeaRecord{ID: "c"},
		models.DeaRecord{ID: "a"},
		models.DeaRecord{ID: "b", PreprocessingStatus: models.PreprocessingFailed},
		models.DeaRecord{ID: "d", PreprocessingStatus: models.PreprocessingDone},
	)

	got, err := s.ListByPreprocessingStatus(ctx, []models.PreprocessingStatus{models.PreprocessingPending, models.PreprocessingFailed}, 0)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	limited, err := s.ListByPreprocessingStatus(ctx, []models.PreprocessingStatus{models.PreprocessingPending}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a", limited[0].ID)

	counts, err := s.CountByPreprocessingStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.PreprocessingPending])
	assert.Equal(t, int64(1), counts[models.PreprocessingDone])
}
