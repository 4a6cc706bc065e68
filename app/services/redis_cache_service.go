package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisScanBatch = 500

// RedisCacheService shared validation cache in Redis. Entries expire by TTL;
// the gazetteer version is part of the key prefix.
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to redisURL and pings it
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisCacheServiceFromClient(client, ttl, logger), nil
}

// NewRedisCacheServiceFromClient wraps an existing client
func NewRedisCacheServiceFromClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: "dea_validation:",
		ttl:    ttl,
	}
}

func (rcs *RedisCacheService) key(key string) string {
	return rcs.prefix + key
}

func (rcs *RedisCacheService) Get(ctx context.Context, key string) (*models.ValidationCacheEntry, bool, error) {
	val, err := rcs.client.Get(ctx, rcs.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		rcs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry models.ValidationCacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		rcs.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = rcs.client.Del(ctx, rcs.key(key)).Err()
		rcs.misses.Add(1)
		return nil, false, nil
	}
	rcs.hits.Add(1)
	return &entry, true, nil
}

func (rcs *RedisCacheService) Set(ctx context.Context, key string, entry *models.ValidationCacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := rcs.client.Set(ctx, rcs.key(key), data, rcs.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (rcs *RedisCacheService) Delete(ctx context.Context, key string) error {
	if err := rcs.client.Del(ctx, rcs.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every key under the prefix with SCAN, never KEYS
func (rcs *RedisCacheService) Clear(ctx context.Context) error {
	deleted, err := rcs.deleteMatching(ctx, rcs.prefix+"*")
	if err != nil {
		return err
	}
	rcs.logger.Info("redis validation cache cleared", zap.Int("keys_deleted", deleted))
	return nil
}

// InvalidateByGazetteerVersion keys do not carry the version, so the whole
// prefix goes. Entries are short-lived anyway.
func (rcs *RedisCacheService) InvalidateByGazetteerVersion(ctx context.Context, gazetteerVersion string) error {
	return rcs.Clear(ctx)
}

func (rcs *RedisCacheService) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := rcs.client.Scan(ctx, cursor, pattern, redisScanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := rcs.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("redis del: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := rcs.hits.Load(), rcs.misses.Load()
	stats := &CacheStats{TotalHits: hits, TotalMiss: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	var cursor uint64
	for {
		keys, next, err := rcs.client.Scan(ctx, cursor, rcs.prefix+"*", redisScanBatch).Result()
		if err != nil {
			rcs.logger.Warn("could not count redis cache keys", zap.Error(err))
			break
		}
		stats.TotalItems += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return stats, nil
}

func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}
