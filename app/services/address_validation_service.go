package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/external"
	"github.com/dea-registry/internal/matcher"
	"github.com/dea-registry/internal/normalizer"
	"go.uber.org/zap"
)

// AddressValidator validation entry point consumed by the step workflow
// and the preprocessor
type AddressValidator interface {
	ValidateAddress(ctx context.Context, q models.AddressQuery) (models.ComprehensiveAddressValidation, error)
}

// AddressValidationService runs the matcher behind the validation cache.
// A cache failure is logged and the validation is computed anyway.
type AddressValidationService struct {
	matcher      *matcher.AddressMatcher
	cache        ICacheService
	useLibpostal bool
	logger       *zap.Logger

	mu               sync.RWMutex
	gazetteerVersion string

	startTime time.Time
	processed int64
}

// NewAddressValidationService creates the service; cache may be nil
func NewAddressValidationService(m *matcher.AddressMatcher, cache ICacheService, gazetteerVersion string, useLibpostal bool, logger *zap.Logger) *AddressValidationService {
	return &AddressValidationService{
		matcher:          m,
		cache:            cache,
		useLibpostal:     useLibpostal,
		logger:           logger,
		gazetteerVersion: gazetteerVersion,
		startTime:        time.Now(),
	}
}

// ValidateAddress validates q, serving repeated queries from the cache
func (s *AddressValidationService) ValidateAddress(ctx context.Context, q models.AddressQuery) (models.ComprehensiveAddressValidation, error) {
	if strings.TrimSpace(q.StreetName) == "" {
		return models.ComprehensiveAddressValidation{}, fmt.Errorf("%w: street name is required", ErrInvalidPayload)
	}

	version := s.GazetteerVersion()
	key := QueryFingerprint(q, version)

	if s.cache != nil {
		entry, found, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("validation cache read failed", zap.Error(err))
		case found && entry.IsValidGazetteerVersion(version):
			s.logger.Debug("validation cache hit", zap.String("fingerprint", key))
			return entry.Result, nil
		}
	}

	result := s.matcher.Validate(ctx, q)
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, models.NewValidationCacheEntry(key, q, result, version)); err != nil {
			s.logger.Warn("validation cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// ParseAndValidate parses a one-line address, then validates it
func (s *AddressValidationService) ParseAndValidate(ctx context.Context, raw string) (external.ParsedAddress, models.ComprehensiveAddressValidation, error) {
	if strings.TrimSpace(raw) == "" {
		return external.ParsedAddress{}, models.ComprehensiveAddressValidation{}, fmt.Errorf("%w: address is required", ErrInvalidPayload)
	}
	parsed := external.ParseFreeTextAddress(raw, s.useLibpostal)
	s.logger.Debug("free-text address parsed",
		zap.String("raw", raw),
		zap.String("source", parsed.Source),
		zap.String("street", parsed.StreetName))
	result, err := s.ValidateAddress(ctx, parsed.Query())
	return parsed, result, err
}

// GazetteerVersion version of the loaded callejero, part of every cache key
func (s *AddressValidationService) GazetteerVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gazetteerVersion
}

// SetGazetteerVersion switches the version after a reseed and drops stale
// cache entries
func (s *AddressValidationService) SetGazetteerVersion(ctx context.Context, version string) error {
	s.mu.Lock()
	s.gazetteerVersion = version
	s.mu.Unlock()
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateByGazetteerVersion(ctx, version)
}

// Cache nil when caching is disabled
func (s *AddressValidationService) Cache() ICacheService {
	return s.cache
}

// Stats counters for the admin endpoint
func (s *AddressValidationService) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"uptime":            time.Since(s.startTime).Round(time.Second).String(),
		"validations":       s.processed,
		"gazetteer_version": s.gazetteerVersion,
		"libpostal":         s.useLibpostal && external.LibpostalAvailable,
	}
}

// QueryFingerprint cache key: normalized fields plus the gazetteer version
func QueryFingerprint(q models.AddressQuery, gazetteerVersion string) string {
	coords := ""
	if q.Coordinates != nil {
		coords = fmt.Sprintf("%.6f,%.6f", q.Coordinates.Latitude, q.Coordinates.Longitude)
	}
	return normalizer.Fingerprint(
		gazetteerVersion,
		normalizer.Normalize(q.StreetType),
		normalizer.Normalize(q.StreetName),
		normalizer.Normalize(q.StreetNumber),
		strings.TrimSpace(q.PostalCode),
		normalizer.Normalize(q.District),
		coords,
	)
}
