package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dea-registry/app/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// MemoryCacheService process-local validation cache (LRU + TTL). Used when
// neither Redis nor MongoDB is configured, and in tests.
type MemoryCacheService struct {
	cache  *lru.Cache[string, *models.ValidationCacheEntry]
	ttl    time.Duration
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCacheService creates a MemoryCacheService
func NewMemoryCacheService(size int, ttl time.Duration, logger *zap.Logger) (*MemoryCacheService, error) {
	cache, err := lru.New[string, *models.ValidationCacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}
	return &MemoryCacheService{cache: cache, ttl: ttl, logger: logger}, nil
}

func (cs *MemoryCacheService) Get(ctx context.Context, key string) (*models.ValidationCacheEntry, bool, error) {
	entry, ok := cs.cache.Get(key)
	if !ok {
		cs.misses.Add(1)
		return nil, false, nil
	}
	if entry.IsExpired(cs.ttl) {
		cs.cache.Remove(key)
		cs.misses.Add(1)
		return nil, false, nil
	}
	cs.hits.Add(1)
	return entry, true, nil
}

func (cs *MemoryCacheService) Set(ctx context.Context, key string, entry *models.ValidationCacheEntry) error {
	cs.cache.Add(key, entry)
	return nil
}

func (cs *MemoryCacheService) Delete(ctx context.Context, key string) error {
	cs.cache.Remove(key)
	return nil
}

func (cs *MemoryCacheService) Clear(ctx context.Context) error {
	cs.cache.Purge()
	return nil
}

func (cs *MemoryCacheService) InvalidateByGazetteerVersion(ctx context.Context, gazetteerVersion string) error {
	removed := 0
	for _, key := range cs.cache.Keys() {
		if entry, ok := cs.cache.Peek(key); ok && !entry.IsValidGazetteerVersion(gazetteerVersion) {
			cs.cache.Remove(key)
			removed++
		}
	}
	cs.logger.Info("memory validation cache invalidated",
		zap.String("gazetteer_version", gazetteerVersion),
		zap.Int("removed", removed))
	return nil
}

func (cs *MemoryCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := cs.hits.Load(), cs.misses.Load()
	stats := &CacheStats{TotalHits: hits, TotalMiss: misses, TotalItems: int64(cs.cache.Len())}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats, nil
}

func (cs *MemoryCacheService) Close() error {
	return nil
}
