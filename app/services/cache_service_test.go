package services

import (
	"context"
	"testing"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func cacheEntry(version string, createdAt time.Time) *models.ValidationCacheEntry {
	e := models.NewValidationCacheEntry("k", models.AddressQuery{StreetName: "Gran Via"}, models.ComprehensiveAddressValidation{}, version)
	e.CreatedAt = createdAt
	return e
}

func TestMemoryCacheService_GetSetAndStats(t *testing.T) {
	cache, err := NewMemoryCacheService(8, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "k", cacheEntry("v1", time.Now())))
	got, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", got.GazetteerVersion)

	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(1), stats.TotalMiss)
	assert.Equal(t, int64(1), stats.TotalItems)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, found, _ = cache.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCacheService_ExpiryAndVersionInvalidation(t *testing.T) {
	cache, err := NewMemoryCacheService(8, time.Minute, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "old", cacheEntry("v1", time.Now().Add(-2*time.Minute))))
	_, found, _ := cache.Get(ctx, "old")
	assert.False(t, found, "expired entries are misses")

	require.NoError(t, cache.Set(ctx, "a", cacheEntry("v1", time.Now())))
	require.NoError(t, cache.Set(ctx, "b", cacheEntry("v2", time.Now())))
	require.NoError(t, cache.InvalidateByGazetteerVersion(ctx, "v2"))

	_, found, _ = cache.Get(ctx, "a")
	assert.False(t, found)
	_, found, _ = cache.Get(ctx, "b")
	assert.True(t, found)

	require.NoError(t, cache.Clear(ctx))
	_, found, _ = cache.Get(ctx, "b")
	assert.False(t, found)
}

func TestAddressValidationService_CachesByVersion(t *testing.T) {
	svc := newValidationService(t)
	ctx := context.Background()
	q := models.AddressQuery{StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "1"}

	first, err := svc.ValidateAddress(ctx, q)
	require.NoError(t, err)
	second, err := svc.ValidateAddress(ctx, models.AddressQuery{StreetType: "calle", StreetName: "GRAN VÍA", StreetNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, first.SearchResult.Suggestions[0].Record.ID, second.SearchResult.Suggestions[0].Record.ID)
	assert.Equal(t, int64(1), svc.Stats()["validations"], "normalized duplicate is served from the cache")

	require.NoError(t, svc.SetGazetteerVersion(ctx, "next"))
	_, err = svc.ValidateAddress(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), svc.Stats()["validations"])
	assert.Equal(t, "next", svc.GazetteerVersion())

	_, err = svc.ValidateAddress(ctx, models.AddressQuery{StreetName: "  "})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestQueryFingerprint(t *testing.T) {
	a := QueryFingerprint(models.AddressQuery{StreetName: "Gran Vía", PostalCode: "28013"}, "v1")
	b := QueryFingerprint(models.AddressQuery{StreetName: "  gran via ", PostalCode: " 28013"}, "v1")
	c := QueryFingerprint(models.AddressQuery{StreetName: "Gran Vía", PostalCode: "28013"}, "v2")
	d := QueryFingerprint(models.AddressQuery{
		StreetName:  "Gran Vía",
		PostalCode:  "28013",
		Coordinates: &models.Coordinates{Latitude: 40.42, Longitude: -3.7025},
	}, "v1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}
