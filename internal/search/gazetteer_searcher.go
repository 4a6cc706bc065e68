package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// GazetteerSearcher typo-tolerant street lookups backed by Meilisearch
type GazetteerSearcher struct {
	client    meilisearch.ServiceManager
	logger    *zap.Logger
	indexName string
	timeout   time.Duration
}

// SearchConfig Meilisearch settings
type SearchConfig struct {
	Host          string
	APIKey        string
	IndexName     string
	Timeout       time.Duration
	MaxCandidates int
}

// NewGazetteerSearcher connects and checks health
func NewGazetteerSearcher(config SearchConfig, logger *zap.Logger) (*GazetteerSearcher, error) {
	client := meilisearch.New(config.Host, meilisearch.WithAPIKey(config.APIKey))

	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("cannot reach Meilisearch: %w", err)
	}
	if config.IndexName == "" {
		config.IndexName = "gazetteer_addresses"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}

	return &GazetteerSearcher{
		client:    client,
		logger:    logger,
		indexName: config.IndexName,
		timeout:   config.Timeout,
	}, nil
}

// FuzzyCandidates records whose street name is close to name under
// Meilisearch typo tolerance. Final scoring is done by the caller.
func (gs *GazetteerSearcher) FuzzyCandidates(ctx context.Context, name string, limit int) ([]models.GazetteerRecord, error) {
	if name == "" {
		return nil, errors.New("empty street name")
	}
	if limit <= 0 {
		limit = 200
	}
	return gs.search(ctx, name, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToSearchOn: []string{"street_name_normalized", "street_name_key"},
	})
}

// NearbyCandidates records inside radiusMeters of (lat, lon), nearest first
func (gs *GazetteerSearcher) NearbyCandidates(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]models.GazetteerRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	return gs.search(ctx, "", &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Filter: fmt.Sprintf("_geoRadius(%f, %f, %d)", lat, lon, int64(radiusMeters+1)),
		Sort:   []string{fmt.Sprintf("_geoPoint(%f, %f):asc", lat, lon)},
	})
}

func (gs *GazetteerSearcher) search(ctx context.Context, q string, req *meilisearch.SearchRequest) ([]models.GazetteerRecord, error) {
	type result struct {
		res *meilisearch.SearchResponse
		err error
	}
	ctx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		res, err := gs.client.Index(gs.indexName).Search(q, req)
		done <- result{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("meilisearch search: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("meilisearch search: %w", r.err)
		}
		return gs.parseSearchResults(r.res)
	}
}

// parseSearchResults decodes hits into records through JSON
func (gs *GazetteerSearcher) parseSearchResults(result *meilisearch.SearchResponse) ([]models.GazetteerRecord, error) {
	records := make([]models.GazetteerRecord, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		raw, err := json.Marshal(hitMap)
		if err != nil {
			continue
		}
		var rec models.GazetteerRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			gs.logger.Debug("skipping undecodable hit", zap.Error(err))
			continue
		}
		rec.Location = models.NewGeoPoint(rec.Latitude, rec.Longitude)
		records = append(records, rec)
	}
	return records, nil
}

// BuildIndexes configures searchable, filterable and sortable attributes
func (gs *GazetteerSearcher) BuildIndexes() error {
	index := gs.client.Index(gs.indexName)

	searchableAttrs := []string{"street_name_normalized", "street_name_key", "street_name"}
	filterableAttrs := []string{"_geo", "street_class", "postal_code", "district_code", "house_number"}
	sortableAttrs := []string{"_geo", "house_number"}
	rankingRules := []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}
	stopWords := []string{"de", "del", "la", "las", "los", "el", "y"}
	synonyms := map[string][]string{
		"sta":  {"santa"},
		"sto":  {"santo"},
		"sn":   {"san"},
		"gral": {"general"},
		"dr":   {"doctor"},
		"ntra": {"nuestra"},
		"sra":  {"senora"},
	}
	oneTypo := int64(4)
	twoTypos := int64(8)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: searchableAttrs,
		FilterableAttributes: filterableAttrs,
		SortableAttributes:   sortableAttrs,
		RankingRules:         rankingRules,
		StopWords:            stopWords,
		Synonyms:             synonyms,
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  oneTypo,
				TwoTypos: twoTypos,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("configuring index: %w", err)
	}

	gs.logger.Info("Meilisearch index configured", zap.String("index", gs.indexName), zap.Int64("task_uid", task.TaskUID))
	return nil
}

// SeedData loads gazetteer records in batches of 1000
func (gs *GazetteerSearcher) SeedData(records []models.GazetteerRecord) error {
	if len(records) == 0 {
		return errors.New("no records to seed")
	}

	index := gs.client.Index(gs.indexName)

	documents := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		doc := map[string]interface{}{
			"id":                     r.ID,
			"segment_id":             r.SegmentID,
			"street_class":           r.StreetClass,
			"street_name":            r.StreetName,
			"street_name_normalized": r.StreetNameNormalized,
			"street_name_key":        r.StreetNameKey,
			"number_suffix":          r.NumberSuffix,
			"postal_code":            r.PostalCode,
			"district_code":          r.DistrictCode,
			"district_name":          r.DistrictName,
			"neighborhood_name":      r.NeighborhoodName,
			"latitude":               r.Latitude,
			"longitude":              r.Longitude,
			"_geo":                   map[string]float64{"lat": r.Latitude, "lng": r.Longitude},
			"gazetteer_version":      r.GazetteerVersion,
		}
		if r.HouseNumber != nil {
			doc["house_number"] = *r.HouseNumber
		}
		documents = append(documents, doc)
	}

	batchSize := 1000
	for i := 0; i < len(documents); i += batchSize {
		end := i + batchSize
		if end > len(documents) {
			end = len(documents)
		}

		task, err := index.AddDocuments(documents[i:end], "id")
		if err != nil {
			return fmt.Errorf("adding documents %d-%d: %w", i, end, err)
		}

		gs.logger.Info("document batch queued",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}

	gs.logger.Info("gazetteer seeded into Meilisearch", zap.Int("total_documents", len(documents)))
	return nil
}
