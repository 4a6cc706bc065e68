package matcher_test

import (
	"testing"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer/gazetteertest"
	"github.com/dea-registry/internal/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleCandidates(t *testing.T, matchType models.MatchType, similarity float64, ids ...string) []models.ScoredCandidate {
	t.Helper()
	byID := make(map[string]models.GazetteerRecord)
	for _, r := range gazetteertest.MadridSample() {
		byID[r.ID] = r
	}
	out := make([]models.ScoredCandidate, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		require.True(t, ok, "unknown sample record %s", id)
		out = append(out, models.ScoredCandidate{Record: r, MatchType: matchType, Similarity: similarity})
	}
	return out
}

func TestCorrector_NumberAndPositionPenalties(t *testing.T) {
	c := matcher.NewCorrector(100, zaptest.NewLogger(t))

	got := c.Correct(
		models.AddressQuery{StreetType: "Calle", StreetName: "Gran Via", StreetNumber: "5"},
		sampleCandidates(t, models.MatchTypeExact, 1, "gv-1", "gv-2", "gv-3", "gv-10", "gv-25"),
	)

	// closest number first; 0.05 per unit of difference (max 0.40), 0.03 per position
	want := []struct {
		id         string
		confidence float64
	}{
		{"gv-3", 0.90},
		{"gv-2", 0.82},
		{"gv-1", 0.74},
		{"gv-10", 0.66},
		{"gv-25", 0.48},
	}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.id, got[i].Record.ID, "position %d", i)
		assert.InDelta(t, w.confidence, got[i].Confidence, 1e-9, "position %d (%s)", i, w.id)
		assert.Contains(t, got[i].Warnings, "El número 5 no existe en los datos oficiales de esta vía")
	}
}

func TestCorrector_NumberWarningBands(t *testing.T) {
	c := matcher.NewCorrector(100, zaptest.NewLogger(t))

	tests := []struct {
		number string
		want   string
	}{
		{"4", "El número 4 es cercano al número oficial 2"},
		{"3", "El número 3 es cercano al número oficial 2"},
		{"5", "El número 5 es diferente del número oficial 2"},
		{"12", "El número 12 es diferente del número oficial 2"},
		{"13", "El número 13 es muy diferente del número oficial 2"},
		{"40", "El número 40 es muy diferente del número oficial 2"},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			got := c.Correct(
				models.AddressQuery{StreetType: "Paseo", StreetName: "De la Chopera", StreetNumber: tt.number},
				sampleCandidates(t, models.MatchTypeExact, 1, "chopera-2"),
			)
			require.Len(t, got, 1)
			assert.Contains(t, got[0].Warnings, tt.want)
		})
	}
}

func TestCorrector_CapFloorAndBonuses(t *testing.T) {
	c := matcher.NewCorrector(100, zaptest.NewLogger(t))
	numberless := gazetteertest.Record("mayor-sn", "PLAZA", "MAYOR", 0, "28012", 1, 40.4155, -3.7074)

	tests := []struct {
		name       string
		number     string
		candidates []models.ScoredCandidate
		want       float64
	}{
		{"exact number keeps full confidence", "2", sampleCandidates(t, models.MatchTypeExact, 1, "chopera-2"), 1.0},
		{"difference of 8 reaches the cap", "10", sampleCandidates(t, models.MatchTypeExact, 1, "chopera-2"), 0.60},
		{"larger differences stay at the cap", "40", sampleCandidates(t, models.MatchTypeExact, 1, "chopera-2"), 0.60},
		{"low similarity hits the floor", "40", sampleCandidates(t, models.MatchTypeFuzzy, 0.3, "chopera-2"), 0.10},
		{"street bonus on a fuzzy base", "2", sampleCandidates(t, models.MatchTypeFuzzy, 0.7, "chopera-2"), 0.90},
		{"official record without number", "5", []models.ScoredCandidate{{Record: numberless, MatchType: models.MatchTypeExact, Similarity: 1}}, 0.80},
		{"no number requested", "", sampleCandidates(t, models.MatchTypeExact, 1, "chopera-2"), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Correct(models.AddressQuery{StreetName: "x", StreetNumber: tt.number}, tt.candidates)
			require.Len(t, got, 1)
			assert.InDelta(t, tt.want, got[0].Confidence, 1e-9)
		})
	}
}
