package search

import (
	"testing"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGazetteerSearcher_ParseSearchResults(t *testing.T) {
	gs := &GazetteerSearcher{logger: zap.NewNop(), indexName: "gazetteer_addresses"}

	res := &meilisearch.SearchResponse{
		Hits: []interface{}{
			map[string]interface{}{
				"id":                     "gv-1",
				"street_class":           "CALLE",
				"street_name":            "GRAN VÍA",
				"street_name_normalized": "gran via",
				"street_name_key":        "gran via",
				"house_number":           float64(1),
				"postal_code":            "28013",
				"district_code":          float64(1),
				"latitude":               40.42,
				"longitude":              -3.7025,
			},
			"not a document",
		},
	}

	records, err := gs.parseSearchResults(res)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "gv-1", r.ID)
	assert.Equal(t, "CALLE", r.StreetClass)
	require.NotNil(t, r.HouseNumber)
	assert.Equal(t, 1, *r.HouseNumber)
	assert.Equal(t, 1, r.DistrictCode)
	assert.Equal(t, [2]float64{-3.7025, 40.42}, r.Location.Coordinates)
}
