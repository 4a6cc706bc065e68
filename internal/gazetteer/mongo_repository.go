package gazetteer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/similarity"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	gazetteerCollection = "gazetteer_addresses"
	streetNamesCacheKey = "street_names"
	// MongoDB converts $centerSphere radians with a different Earth radius;
	// the margin keeps the query a superset, Store filters exactly.
	centerSphereMargin  = 1.05
	mongoEarthRadiusM   = 6378100.0
	maxFuzzyStreetNames = 50
)

type streetName struct {
	Normalized string `bson:"n"`
	Key        string `bson:"k"`
}

// MongoRepository gazetteer stored in MongoDB with a 2dsphere index on location
type MongoRepository struct {
	collection *mongo.Collection
	names      *lru.Cache[string, []streetName] // distinct street names for fuzzy lookups
	logger     *zap.Logger
}

// NewMongoRepository creates the repository over db.gazetteer_addresses
func NewMongoRepository(db *mongo.Database, logger *zap.Logger) (*MongoRepository, error) {
	names, err := lru.New[string, []streetName](4)
	if err != nil {
		return nil, fmt.Errorf("creating street name cache: %w", err)
	}
	return &MongoRepository{
		collection: db.Collection(gazetteerCollection),
		names:      names,
		logger:     logger,
	}, nil
}

func (r *MongoRepository) SearchByExactMatch(ctx context.Context, c Criteria) ([]models.GazetteerRecord, error) {
	filter := bson.M{"street_name_key": c.NameKey}
	if c.StreetClass != "" {
		filter["street_class"] = c.StreetClass
	}
	if c.HouseNumber != nil {
		filter["house_number"] = *c.HouseNumber
	}
	if c.PostalCode != "" {
		filter["postal_code"] = c.PostalCode
	}
	if c.DistrictCode != 0 {
		filter["district_code"] = c.DistrictCode
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "house_number", Value: 1}}))
}

func (r *MongoRepository) SearchByFuzzyMatch(ctx context.Context, c Criteria, threshold float64) ([]models.GazetteerRecord, error) {
	names, err := r.streetNames(ctx)
	if err != nil {
		return nil, err
	}
	matched := bestStreetNames(c, names, threshold, maxFuzzyStreetNames)
	if len(matched) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"street_name_normalized": bson.M{"$in": matched}}, options.Find())
}

// bestStreetNames normalized names scoring at least threshold, best first,
// cut at limit
func bestStreetNames(c Criteria, names []streetName, threshold float64, limit int) []string {
	type scored struct {
		name string
		sim  float64
	}
	var hits []scored
	for _, n := range names {
		sim := similarity.Ratio(c.NameNormalized, n.Normalized)
		if k := similarity.Ratio(c.NameKey, n.Key); k > sim {
			sim = k
		}
		if sim >= threshold {
			hits = append(hits, scored{n.Normalized, sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func (r *MongoRepository) SearchByGeographicProximity(ctx context.Context, lat, lon, radiusMeters float64) ([]models.GazetteerRecord, error) {
	radians := radiusMeters * centerSphereMargin / mongoEarthRadiusM
	filter := bson.M{
		"location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{lon, lat}, radians},
			},
		},
	}
	return r.find(ctx, filter, options.Find())
}

func (r *MongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.GazetteerRecord, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", gazetteerCollection, err)
	}
	defer cursor.Close(ctx)

	var out []models.GazetteerRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", gazetteerCollection, err)
	}
	return out, nil
}

// streetNames distinct (normalized, key) pairs, cached until the next Upsert
func (r *MongoRepository) streetNames(ctx context.Context) ([]streetName, error) {
	if names, ok := r.names.Get(streetNamesCacheKey); ok {
		return names, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": bson.M{"n": "$street_name_normalized", "k": "$street_name_key"}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$_id"}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("listing street names: %w", err)
	}
	defer cursor.Close(ctx)

	var names []streetName
	if err := cursor.All(ctx, &names); err != nil {
		return nil, fmt.Errorf("decoding street names: %w", err)
	}
	r.names.Add(streetNamesCacheKey, names)
	r.logger.Debug("street name list loaded", zap.Int("count", len(names)))
	return names, nil
}

// Upsert replaces records by _id in one bulk write
func (r *MongoRepository) Upsert(ctx context.Context, records []models.GazetteerRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for i := range records {
		rec := records[i]
		PrepareRecord(&rec, "")
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetReplacement(rec).
			SetUpsert(true))
	}
	res, err := r.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk upsert gazetteer: %w", err)
	}
	r.names.Purge()
	return int(res.UpsertedCount + res.ModifiedCount), nil
}

// EnsureIndexes 2dsphere on location plus the exact-match keys
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "street_name_key", Value: 1}, {Key: "street_class", Value: 1}, {Key: "house_number", Value: 1}}},
		{Keys: bson.D{{Key: "street_name_normalized", Value: 1}}},
		{Keys: bson.D{{Key: "postal_code", Value: 1}}},
		{Keys: bson.D{{Key: "district_code", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating gazetteer indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
