package matcher_test

import (
	"context"
	"strings"
	"testing"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/gazetteer/gazetteertest"
	"github.com/dea-registry/internal/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMatcher(t *testing.T, repo gazetteer.AddressRepository) *matcher.AddressMatcher {
	cfg := config.Default().Matching
	logger := zaptest.NewLogger(t)
	return matcher.NewAddressMatcher(gazetteer.NewStore(repo, cfg, logger), cfg, logger)
}

func anyContains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestValidate_GranViaExact(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())

	got := m.Validate(context.Background(), models.AddressQuery{
		StreetType:   "Calle",
		StreetName:   "Gran Via",
		StreetNumber: "1",
		PostalCode:   "28013",
		District:     "1",
		Coordinates:  &models.Coordinates{Latitude: 40.4200, Longitude: -3.7025},
	})

	sr := got.SearchResult
	assert.True(t, sr.IsValid)
	assert.Equal(t, models.MatchTypeExact, sr.MatchType)
	assert.Equal(t, 1.0, sr.Confidence)
	assert.Equal(t, models.StatusValid, got.OverallStatus)
	require.NotEmpty(t, sr.Suggestions)
	assert.Equal(t, "gv-1", sr.Suggestions[0].Record.ID)

	d := got.ValidationDetails
	assert.False(t, d.AnyCorrection(), "%+v", d)
	assert.Equal(t, 1.0, d.StreetName.Similarity)
	require.NotNil(t, d.Coordinates.DistanceMeters)
	assert.InDelta(t, 0, *d.Coordinates.DistanceMeters, 1e-6)
	assert.Equal(t, []string{"Dirección validada, no se requiere ninguna acción"}, got.RecommendedActions)
}

func TestValidate_NumberMismatchNeverFullConfidence(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())

	got := m.Validate(context.Background(), models.AddressQuery{
		StreetType:   "Paseo",
		StreetName:   "De la Chopera",
		StreetNumber: "4",
	})

	sr := got.SearchResult
	require.True(t, sr.IsValid)
	assert.Equal(t, models.MatchTypeExact, sr.MatchType)
	assert.Equal(t, "chopera-2", sr.Suggestions[0].Record.ID)
	assert.InDelta(t, 0.9, sr.Confidence, 1e-9)
	assert.Less(t, sr.Confidence, 0.95)
	assert.NotEqual(t, models.StatusValid, got.OverallStatus)
	assert.True(t, anyContains(sr.Warnings, "El número 4"), "warnings: %v", sr.Warnings)
	assert.True(t, got.ValidationDetails.StreetNumber.NeedsCorrection)
	assert.Equal(t, "2", got.ValidationDetails.StreetNumber.Official)
}

func TestValidate_NumberPenaltyIsMonotonic(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())
	ctx := context.Background()

	prev := 1.01
	for _, number := range []string{"2", "3", "5", "7", "9"} {
		got := m.Validate(ctx, models.AddressQuery{StreetType: "Paseo", StreetName: "Chopera", StreetNumber: number})
		require.NotEmpty(t, got.SearchResult.Suggestions, number)
		assert.Equal(t, "chopera-2", got.SearchResult.Suggestions[0].Record.ID)
		assert.Less(t, got.SearchResult.Confidence, prev, "number %s", number)
		prev = got.SearchResult.Confidence
	}
}

func TestValidate_StreetFuzzyAutoCorrects(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())

	got := m.Validate(context.Background(), models.AddressQuery{
		StreetType:   "C/",
		StreetName:   "Gran Bia",
		StreetNumber: "3",
		PostalCode:   "28013",
	})

	sr := got.SearchResult
	require.True(t, sr.IsValid)
	assert.Equal(t, models.MatchTypeFuzzy, sr.MatchType)
	assert.Equal(t, "gv-3", sr.Suggestions[0].Record.ID)
	assert.Equal(t, models.StatusNeedsReview, got.OverallStatus)
	assert.True(t, got.ValidationDetails.StreetName.NeedsCorrection)
	assert.Equal(t, "GRAN VÍA", got.ValidationDetails.StreetName.Official)
	assert.True(t, anyContains(sr.Warnings, "similitud"))
}

func TestValidate_WrongStreetTypeIsPartial(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())

	got := m.Validate(context.Background(), models.AddressQuery{
		StreetType:   "Avenida",
		StreetName:   "Gran Via",
		StreetNumber: "1",
	})

	sr := got.SearchResult
	require.True(t, sr.IsValid)
	assert.Equal(t, models.MatchTypePartial, sr.MatchType)
	assert.InDelta(t, 0.8, sr.Confidence, 1e-9)
	assert.Equal(t, "gv-1", sr.Suggestions[0].Record.ID)
	assert.True(t, got.ValidationDetails.StreetType.NeedsCorrection)
	assert.Equal(t, models.StatusNeedsReview, got.OverallStatus)
	assert.Contains(t, got.RecommendedActions, "Corregir el tipo de vía a CALLE")
}

func TestValidate_GeographicFallback(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())

	got := m.Validate(context.Background(), models.AddressQuery{
		StreetName:  "Zzzz Qqqq",
		PostalCode:  "28013",
		District:    "Centro",
		Coordinates: &models.Coordinates{Latitude: 40.4200, Longitude: -3.7025},
	})

	sr := got.SearchResult
	require.True(t, sr.IsValid)
	assert.Equal(t, models.MatchTypeGeographic, sr.MatchType)
	assert.Equal(t, "gv-1", sr.Suggestions[0].Record.ID)
	assert.Equal(t, 1.0, sr.Confidence)
	assert.Equal(t, models.StatusNeedsReview, got.OverallStatus)

	// no coordinates, no fallback
	none := m.Validate(context.Background(), models.AddressQuery{StreetName: "Zzzz Qqqq", PostalCode: "28013"})
	assert.False(t, none.SearchResult.IsValid)
}

func TestValidate_NoMatch(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())

	for _, q := range []models.AddressQuery{
		{StreetName: "Zurbarán", StreetNumber: "5"},
		{StreetName: "   "},
	} {
		got := m.Validate(context.Background(), q)
		sr := got.SearchResult
		assert.False(t, sr.IsValid)
		assert.Equal(t, models.MatchTypeNone, sr.MatchType)
		assert.Empty(t, sr.Suggestions)
		assert.NotEmpty(t, sr.Errors)
		assert.Equal(t, models.StatusInvalid, got.OverallStatus)
		assert.Contains(t, got.RecommendedActions, "Verificar la dirección manualmente")
	}
}

func TestValidate_BackendDownIsInvalid(t *testing.T) {
	m := newMatcher(t, gazetteertest.FailingRepository{})

	got := m.Validate(context.Background(), models.AddressQuery{StreetName: "Gran Via", StreetNumber: "1"})
	assert.False(t, got.SearchResult.IsValid)
	assert.Equal(t, models.StatusInvalid, got.OverallStatus)
}

func TestValidate_StatusConsistency(t *testing.T) {
	m := newMatcher(t, gazetteertest.NewMemory())
	ctx := context.Background()

	queries := []models.AddressQuery{
		{StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "1", PostalCode: "28013", District: "1"},
		{StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "7"},
		{StreetName: "Gran Via", StreetNumber: "25", PostalCode: "28000"},
		{StreetName: "Castellana", StreetNumber: "100", District: "Chamartín"},
		{StreetName: "Alcala", StreetNumber: "50", District: "garbage"},
		{StreetType: "Avda", StreetName: "Cordoba", StreetNumber: "15"},
		{StreetType: "Plaza", StreetName: "Mayor"},
		{StreetName: "Mayor", Coordinates: &models.Coordinates{Latitude: 40.5, Longitude: -3.5}},
		{StreetName: "Nada Parecido"},
	}
	for _, q := range queries {
		got := m.Validate(ctx, q)
		sr := got.SearchResult
		assert.Equal(t, got.OverallStatus == models.StatusInvalid, !sr.IsValid, "%+v", q)
		if got.OverallStatus == models.StatusValid {
			assert.GreaterOrEqual(t, sr.Confidence, 0.95)
			assert.Equal(t, models.MatchTypeExact, sr.MatchType)
			assert.False(t, got.ValidationDetails.AnyCorrection())
		}
		if !sr.IsValid {
			assert.Empty(t, sr.Suggestions)
		}
		for _, s := range sr.Suggestions {
			assert.GreaterOrEqual(t, s.Confidence, 0.0)
			assert.LessOrEqual(t, s.Confidence, 1.0)
		}
		assert.NotEmpty(t, got.RecommendedActions)
	}
}
