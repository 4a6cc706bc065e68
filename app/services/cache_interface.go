package services

import (
	"context"

	"github.com/dea-registry/app/models"
)

// CacheStats cache counters
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ICacheService validation result cache, keyed by query fingerprint
type ICacheService interface {
	// Get returns the entry for key; found=false on a miss
	Get(ctx context.Context, key string) (*models.ValidationCacheEntry, bool, error)

	Set(ctx context.Context, key string, entry *models.ValidationCacheEntry) error

	Delete(ctx context.Context, key string) error

	Clear(ctx context.Context) error

	// InvalidateByGazetteerVersion drops entries computed against any other version
	InvalidateByGazetteerVersion(ctx context.Context, gazetteerVersion string) error

	GetStats(ctx context.Context) (*CacheStats, error)

	Close() error
}
