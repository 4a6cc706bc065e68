package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// slowValidator blocks on the streets it is told to, otherwise delegates
type slowValidator struct {
	next AddressValidator
	slow map[string]bool
}

func (v slowValidator) ValidateAddress(ctx context.Context, q models.AddressQuery) (models.ComprehensiveAddressValidation, error) {
	if v.slow[q.StreetName] {
		<-ctx.Done()
		return models.ComprehensiveAddressValidation{}, ctx.Err()
	}
	return v.next.ValidateAddress(ctx, q)
}

func testBatchCfg() config.BatchCfg {
	return config.BatchCfg{Size: 2, RecordTimeout: 50 * time.Millisecond, MaxRetries: 3}
}

func TestPreprocessing_RunSettlesEveryRecord(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore(
		models.DeaRecord{
			ID: "a", StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "1",
			PostalCode: "28013", District: "1", Latitude: floatPtr(40.4200), Longitude: floatPtr(-3.7025),
		},
		models.DeaRecord{ID: "b", StreetType: "Paseo", StreetName: "De la Chopera", StreetNumber: "2"},
		models.DeaRecord{ID: "c"},
		models.DeaRecord{ID: "d", StreetName: "Calle Lenta", PreprocessingRetries: 2},
		models.DeaRecord{ID: "e", StreetName: "Calle Lenta"},
		models.DeaRecord{ID: "f", StreetName: "Zurbarán", PreprocessingStatus: models.PreprocessingDone},
	)
	validator := slowValidator{next: newValidationService(t), slow: map[string]bool{"Calle Lenta": true}}
	svc := NewPreprocessingService(store, validator, testBatchCfg(), zaptest.NewLogger(t))

	run, err := svc.Run(ctx, PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, run.Status)
	assert.Equal(t, 5, run.Total)
	assert.Equal(t, 5, run.Processed)
	assert.Equal(t, 3, run.Batches)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.PermanentlyFailed)
	assert.Equal(t, 1.0, run.Progress())
	require.NotNil(t, run.FinishedAt)

	a, err := store.FindRecordByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.PreprocessingDone, a.PreprocessingStatus)
	assert.Equal(t, models.StatusValid, a.AddressValidationStatus)
	require.NotNil(t, a.AddressValidation)
	assert.True(t, a.AddressValidation.SearchResult.IsValid)
	assert.NotNil(t, a.PreprocessedAt)

	c, err := store.FindRecordByID(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, models.PreprocessingFailedPermanent, c.PreprocessingStatus)
	assert.NotEmpty(t, c.PreprocessingError)

	d, err := store.FindRecordByID(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, models.PreprocessingFailedPermanent, d.PreprocessingStatus)
	assert.Equal(t, 3, d.PreprocessingRetries)

	e, err := store.FindRecordByID(ctx, "e")
	require.NoError(t, err)
	assert.Equal(t, models.PreprocessingFailed, e.PreprocessingStatus)
	assert.Equal(t, 1, e.PreprocessingRetries)
	assert.NotEmpty(t, e.PreprocessingError)

	f, err := store.FindRecordByID(ctx, "f")
	require.NoError(t, err)
	assert.Nil(t, f.AddressValidation)
}

func TestPreprocessing_RetryFailedPicksUpRetryableRecords(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore(
		models.DeaRecord{ID: "r1", StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "2", PreprocessingStatus: models.PreprocessingFailed, PreprocessingRetries: 1},
		models.DeaRecord{ID: "r2", StreetName: "Gran Via", PreprocessingStatus: models.PreprocessingFailedPermanent},
	)
	svc := NewPreprocessingService(store, newValidationService(t), testBatchCfg(), zaptest.NewLogger(t))

	run, err := svc.Run(ctx, PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, run.Total)

	run, err = svc.Run(ctx, PreprocessOptions{RetryFailed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Total)
	assert.Equal(t, 1, run.Succeeded)

	r1, err := store.FindRecordByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.PreprocessingDone, r1.PreprocessingStatus)
	assert.Empty(t, r1.PreprocessingError)

	counts, err := store.CountByPreprocessingStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.PreprocessingDone])
	assert.Equal(t, int64(1), counts[models.PreprocessingFailedPermanent])
}

func TestPreprocessing_StartRunsInBackground(t *testing.T) {
	store := records.NewMemoryStore(
		models.DeaRecord{ID: "s1", StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "3"},
	)
	// the run goroutine may still log after the test returns
	svc := NewPreprocessingService(store, newValidationService(t), testBatchCfg(), zap.NewNop())

	run, err := svc.Start(PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Total)

	assert.Eventually(t, func() bool {
		got, err := svc.GetRun(run.RunID)
		return err == nil && got.Status == RunStatusDone
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, svc.ListRuns(), 1)

	_, err = svc.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.ErrorIs(t, svc.CancelRun("nope"), ErrRunNotFound)
}

func TestPreprocessing_CancelledRunLeavesRecordsUntouched(t *testing.T) {
	store := records.NewMemoryStore(
		models.DeaRecord{ID: "c1", StreetName: "Calle Lenta"},
		models.DeaRecord{ID: "c2", StreetName: "Calle Lenta", PreprocessingStatus: models.PreprocessingFailed, PreprocessingRetries: 1},
		models.DeaRecord{ID: "c3", StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "1"},
	)
	validator := slowValidator{next: newValidationService(t), slow: map[string]bool{"Calle Lenta": true}}
	cfg := testBatchCfg()
	cfg.RecordTimeout = 10 * time.Second
	svc := NewPreprocessingService(store, validator, cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	run, err := svc.Run(ctx, PreprocessOptions{RetryFailed: true})
	require.NoError(t, err)
	assert.Equal(t, RunStatusCancelled, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 0, run.Failed)

	for id, want := range map[string]struct {
		status  models.PreprocessingStatus
		retries int
	}{
		"c1": {models.PreprocessingPending, 0},
		"c2": {models.PreprocessingFailed, 1},
		"c3": {models.PreprocessingPending, 0},
	} {
		rec, err := store.FindRecordByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want.status, rec.PreprocessingStatus, id)
		assert.Equal(t, want.retries, rec.PreprocessingRetries, id)
		assert.Empty(t, rec.PreprocessingError, id)
	}
}

func TestPreprocessing_RetryFailedRecoversStuckRecords(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore(
		models.DeaRecord{ID: "stuck", StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "3", PreprocessingStatus: models.PreprocessingInProgress},
	)
	svc := NewPreprocessingService(store, newValidationService(t), testBatchCfg(), zaptest.NewLogger(t))

	run, err := svc.Run(ctx, PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, run.Total)

	run, err = svc.Run(ctx, PreprocessOptions{RetryFailed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Total)
	assert.Equal(t, 1, run.Succeeded)

	rec, err := store.FindRecordByID(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, models.PreprocessingDone, rec.PreprocessingStatus)
}
