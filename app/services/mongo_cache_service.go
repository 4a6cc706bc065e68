package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dea-registry/app/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const validationCacheCollection = "address_validation_cache"

// MongoCacheService persistent validation cache: in-process LRU in front of
// a MongoDB collection keyed by fingerprint.
type MongoCacheService struct {
	collection *mongo.Collection
	l1Cache    *lru.Cache[string, *models.ValidationCacheEntry]
	ttl        time.Duration
	logger     *zap.Logger

	l1Hits    atomic.Int64
	mongoHits atomic.Int64
	misses    atomic.Int64
}

// NewMongoCacheService creates the service and its indexes. ttl <= 0 keeps
// entries until the gazetteer version changes.
func NewMongoCacheService(db *mongo.Database, l1Size int, ttl time.Duration, logger *zap.Logger) (*MongoCacheService, error) {
	l1Cache, err := lru.New[string, *models.ValidationCacheEntry](l1Size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	collection := db.Collection(validationCacheCollection)
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "fingerprint", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "gazetteer_version", Value: 1}}},
		{Keys: bson.D{{Key: "last_accessed", Value: 1}}},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("could not create validation cache indexes", zap.Error(err))
	}

	return &MongoCacheService{
		collection: collection,
		l1Cache:    l1Cache,
		ttl:        ttl,
		logger:     logger,
	}, nil
}

// Get L1 first, then MongoDB
func (mcs *MongoCacheService) Get(ctx context.Context, key string) (*models.ValidationCacheEntry, bool, error) {
	if entry, found := mcs.l1Cache.Get(key); found && !entry.IsExpired(mcs.ttl) {
		mcs.l1Hits.Add(1)
		return entry, true, nil
	}

	var entry models.ValidationCacheEntry
	err := mcs.collection.FindOne(ctx, bson.M{"fingerprint": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		mcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying validation cache: %w", err)
	}
	if entry.IsExpired(mcs.ttl) {
		mcs.misses.Add(1)
		return nil, false, nil
	}

	mcs.mongoHits.Add(1)
	go mcs.updateAccessStats(entry.ID)
	entry.UpdateAccess()
	mcs.l1Cache.Add(key, &entry)
	return &entry, true, nil
}

func (mcs *MongoCacheService) Set(ctx context.Context, key string, entry *models.ValidationCacheEntry) error {
	mcs.l1Cache.Add(key, entry)

	doc := *entry
	doc.ID = primitive.NilObjectID
	doc.Fingerprint = key
	_, err := mcs.collection.ReplaceOne(ctx, bson.M{"fingerprint": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("storing validation cache entry: %w", err)
	}
	mcs.logger.Debug("validation cached",
		zap.String("fingerprint", key),
		zap.String("status", string(entry.OverallStatus)))
	return nil
}

func (mcs *MongoCacheService) Delete(ctx context.Context, key string) error {
	mcs.l1Cache.Remove(key)
	if _, err := mcs.collection.DeleteOne(ctx, bson.M{"fingerprint": key}); err != nil {
		return fmt.Errorf("deleting validation cache entry: %w", err)
	}
	return nil
}

func (mcs *MongoCacheService) Clear(ctx context.Context) error {
	mcs.l1Cache.Purge()
	if _, err := mcs.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clearing validation cache: %w", err)
	}
	mcs.l1Hits.Store(0)
	mcs.mongoHits.Store(0)
	mcs.misses.Store(0)
	return nil
}

func (mcs *MongoCacheService) InvalidateByGazetteerVersion(ctx context.Context, gazetteerVersion string) error {
	mcs.l1Cache.Purge()
	res, err := mcs.collection.DeleteMany(ctx, bson.M{"gazetteer_version": bson.M{"$ne": gazetteerVersion}})
	if err != nil {
		return fmt.Errorf("invalidating validation cache: %w", err)
	}
	mcs.logger.Info("validation cache invalidated",
		zap.String("gazetteer_version", gazetteerVersion),
		zap.Int64("deleted", res.DeletedCount))
	return nil
}

func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	count, err := mcs.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("counting validation cache: %w", err)
	}
	hits := mcs.l1Hits.Load() + mcs.mongoHits.Load()
	misses := mcs.misses.Load()
	stats := &CacheStats{TotalHits: hits, TotalMiss: misses, TotalItems: count}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	mcs.logger.Debug("validation cache stats",
		zap.Int64("l1_hits", mcs.l1Hits.Load()),
		zap.Int64("mongo_hits", mcs.mongoHits.Load()),
		zap.Int("l1_size", mcs.l1Cache.Len()))
	return stats, nil
}

// Close the MongoDB client is owned by the caller
func (mcs *MongoCacheService) Close() error {
	return nil
}

// WarmUp loads the most accessed entries into L1
func (mcs *MongoCacheService) WarmUp(ctx context.Context, limit int) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "access_count", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := mcs.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("warming validation cache: %w", err)
	}
	defer cursor.Close(ctx)

	loaded := 0
	for cursor.Next(ctx) {
		var entry models.ValidationCacheEntry
		if err := cursor.Decode(&entry); err != nil {
			mcs.logger.Warn("skipping undecodable cache entry", zap.Error(err))
			continue
		}
		mcs.l1Cache.Add(entry.Fingerprint, &entry)
		loaded++
	}
	mcs.logger.Info("validation cache warmed up", zap.Int("loaded", loaded))
	return cursor.Err()
}

func (mcs *MongoCacheService) updateAccessStats(id primitive.ObjectID) {
	if id.IsZero() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := mcs.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"last_accessed": time.Now().UTC()},
		"$inc": bson.M{"access_count": 1},
	})
	if err != nil {
		mcs.logger.Warn("could not update cache access stats", zap.Error(err))
	}
}
