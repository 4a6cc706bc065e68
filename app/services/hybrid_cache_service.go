package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dea-registry/app/models"
	"go.uber.org/zap"
)

// HybridCacheService Redis (L1, shared) in front of MongoDB (L2, persistent)
type HybridCacheService struct {
	redisCache *RedisCacheService
	mongoCache *MongoCacheService
	logger     *zap.Logger
}

// NewHybridCacheService creates a HybridCacheService
func NewHybridCacheService(redisCache *RedisCacheService, mongoCache *MongoCacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{
		redisCache: redisCache,
		mongoCache: mongoCache,
		logger:     logger,
	}
}

// Get Redis first; an L2 hit is copied back to Redis in the background
func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.ValidationCacheEntry, bool, error) {
	entry, found, err := hcs.redisCache.Get(ctx, key)
	if err != nil {
		hcs.logger.Warn("redis cache failed, falling back to mongo", zap.Error(err))
	} else if found {
		return entry, true, nil
	}

	entry, found, err = hcs.mongoCache.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hcs.redisCache.Set(bgCtx, key, entry); err != nil {
			hcs.logger.Warn("could not promote cache entry to redis", zap.String("key", key), zap.Error(err))
		}
	}()
	return entry, true, nil
}

func (hcs *HybridCacheService) Set(ctx context.Context, key string, entry *models.ValidationCacheEntry) error {
	return hcs.both(
		func() error { return hcs.redisCache.Set(ctx, key, entry) },
		func() error { return hcs.mongoCache.Set(ctx, key, entry) },
	)
}

func (hcs *HybridCacheService) Delete(ctx context.Context, key string) error {
	return hcs.both(
		func() error { return hcs.redisCache.Delete(ctx, key) },
		func() error { return hcs.mongoCache.Delete(ctx, key) },
	)
}

func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	if err := hcs.both(
		func() error { return hcs.redisCache.Clear(ctx) },
		func() error { return hcs.mongoCache.Clear(ctx) },
	); err != nil {
		return err
	}
	hcs.logger.Info("hybrid validation cache cleared")
	return nil
}

func (hcs *HybridCacheService) InvalidateByGazetteerVersion(ctx context.Context, gazetteerVersion string) error {
	return hcs.both(
		func() error { return hcs.redisCache.InvalidateByGazetteerVersion(ctx, gazetteerVersion) },
		func() error { return hcs.mongoCache.InvalidateByGazetteerVersion(ctx, gazetteerVersion) },
	)
}

// GetStats counts are taken from L2; hits and misses add up both layers
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	redisStats, redisErr := hcs.redisCache.GetStats(ctx)
	mongoStats, mongoErr := hcs.mongoCache.GetStats(ctx)
	switch {
	case redisErr != nil && mongoErr != nil:
		return nil, fmt.Errorf("both cache layers failed: %w", errors.Join(redisErr, mongoErr))
	case redisErr != nil:
		return mongoStats, nil
	case mongoErr != nil:
		return redisStats, nil
	}

	combined := &CacheStats{
		TotalHits:  redisStats.TotalHits + mongoStats.TotalHits,
		TotalMiss:  mongoStats.TotalMiss,
		TotalItems: mongoStats.TotalItems,
	}
	if total := combined.TotalHits + combined.TotalMiss; total > 0 {
		combined.HitRate = float64(combined.TotalHits) / float64(total)
	}
	return combined, nil
}

func (hcs *HybridCacheService) Close() error {
	return hcs.both(hcs.redisCache.Close, hcs.mongoCache.Close)
}

// both runs the two layer operations concurrently and joins their errors
func (hcs *HybridCacheService) both(l1, l2 func() error) error {
	errCh := make(chan error, 2)
	go func() { errCh <- l1() }()
	go func() { errCh <- l2() }()

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
