package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dea-registry/app/models"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/geo"
	"github.com/dea-registry/internal/normalizer"
	"github.com/dea-registry/internal/records"
	"go.uber.org/zap"
)

// IndexBuilder search index kept next to the gazetteer backend (Meilisearch)
type IndexBuilder interface {
	BuildIndexes() error
	SeedData(records []models.GazetteerRecord) error
}

// AdminService callejero loading, index maintenance and system stats
type AdminService struct {
	loader     gazetteer.Loader
	index      IndexBuilder
	validation *AddressValidationService
	records    records.Store
	logger     *zap.Logger
	startTime  time.Time
}

// GazetteerValidation result of checking a callejero load before writing it
type GazetteerValidation struct {
	Passed             bool     `json:"passed"`
	Warnings           []string `json:"warnings"`
	EstimatedBuildTime string   `json:"estimated_build_time"`
}

// SeedOptions of SeedGazetteer
type SeedOptions struct {
	DryRun         bool `json:"dry_run"`
	RebuildIndexes bool `json:"rebuild_indexes"`
}

// SeedResult outcome of SeedGazetteer
type SeedResult struct {
	GazetteerVersion string               `json:"gazetteer_version"`
	RecordsProcessed int                  `json:"records_processed"`
	RecordsWritten   int                  `json:"records_written"`
	IndexesBuilt     int                  `json:"indexes_built"`
	DryRun           bool                 `json:"dry_run"`
	Validation       *GazetteerValidation `json:"validation"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

// SystemStats admin dashboard counters
type SystemStats struct {
	Uptime           string                               `json:"uptime"`
	GazetteerVersion string                               `json:"gazetteer_version"`
	GazetteerRecords int64                                `json:"gazetteer_records"`
	Preprocessing    map[models.PreprocessingStatus]int64 `json:"preprocessing"`
	Cache            *CacheStats                          `json:"cache,omitempty"`
	Validation       map[string]interface{}               `json:"validation"`
	MemoryUsage      map[string]interface{}               `json:"memory_usage"`
}

// NewAdminService creates the service; index may be nil when Meilisearch is
// not configured
func NewAdminService(loader gazetteer.Loader, index IndexBuilder, validation *AddressValidationService, store records.Store, logger *zap.Logger) *AdminService {
	return &AdminService{
		loader:     loader,
		index:      index,
		validation: validation,
		records:    store,
		logger:     logger,
		startTime:  time.Now(),
	}
}

// ValidateGazetteerData checks ids, districts, postal codes and coordinates
func (as *AdminService) ValidateGazetteerData(data []models.GazetteerRecord) *GazetteerValidation {
	if len(data) == 0 {
		return &GazetteerValidation{
			Passed:             false,
			Warnings:           []string{"No hay registros para validar"},
			EstimatedBuildTime: "0s",
		}
	}

	warnings := make([]string, 0)
	seenIDs := make(map[string]bool, len(data))
	for i, r := range data {
		if r.ID == "" {
			warnings = append(warnings, fmt.Sprintf("Falta el id en el índice %d", i))
		} else if seenIDs[r.ID] {
			warnings = append(warnings, fmt.Sprintf("Id duplicado: %s", r.ID))
		}
		seenIDs[r.ID] = true

		if r.StreetName == "" {
			warnings = append(warnings, fmt.Sprintf("Falta el nombre de vía en el índice %d", i))
		}
		if r.DistrictCode < normalizer.MinDistrict || r.DistrictCode > normalizer.MaxDistrict {
			warnings = append(warnings, fmt.Sprintf("Distrito %d inválido en el índice %d", r.DistrictCode, i))
		}
		if r.PostalCode != "" && !rePostalCode.MatchString(r.PostalCode) {
			warnings = append(warnings, fmt.Sprintf("Código postal '%s' inválido en el índice %d", r.PostalCode, i))
		}
		if !geo.InMadrid(r.Latitude, r.Longitude) {
			warnings = append(warnings, fmt.Sprintf("Coordenadas (%.6f, %.6f) fuera de Madrid en el índice %d", r.Latitude, r.Longitude, i))
		}
		if r.HouseNumber != nil && *r.HouseNumber < 0 {
			warnings = append(warnings, fmt.Sprintf("Número %d negativo en el índice %d", *r.HouseNumber, i))
		}
	}

	// ~2000 records/second on the mongo backend
	estimatedSeconds := len(data) / 2000
	if estimatedSeconds < 1 {
		estimatedSeconds = 1
	}

	return &GazetteerValidation{
		Passed:             len(warnings) == 0,
		Warnings:           warnings,
		EstimatedBuildTime: fmt.Sprintf("%ds", estimatedSeconds),
	}
}

// SeedGazetteer validates and loads a callejero version. A dry run stops
// after validation. A successful load switches the active gazetteer version.
func (as *AdminService) SeedGazetteer(ctx context.Context, version string, data []models.GazetteerRecord, opts SeedOptions) (*SeedResult, error) {
	start := time.Now()
	if version == "" {
		return nil, fmt.Errorf("%w: gazetteer version is required", ErrInvalidPayload)
	}

	validation := as.ValidateGazetteerData(data)
	result := &SeedResult{
		GazetteerVersion: version,
		RecordsProcessed: len(data),
		DryRun:           opts.DryRun,
		Validation:       validation,
	}
	if !validation.Passed {
		return result, fmt.Errorf("%w: %d problems found", ErrInvalidGazetteerData, len(validation.Warnings))
	}
	if opts.DryRun {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}

	for i := range data {
		gazetteer.PrepareRecord(&data[i], version)
	}

	written, err := as.loader.Upsert(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("loading gazetteer: %w", err)
	}
	result.RecordsWritten = written
	if err := as.loader.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating gazetteer indexes: %w", err)
	}
	result.IndexesBuilt++

	if opts.RebuildIndexes && as.index != nil {
		if err := as.index.BuildIndexes(); err != nil {
			as.logger.Warn("configuring search index failed", zap.Error(err))
		} else {
			result.IndexesBuilt++
		}
		if err := as.index.SeedData(data); err != nil {
			as.logger.Warn("seeding search index failed", zap.Error(err))
		}
	}

	if as.validation != nil {
		if err := as.validation.SetGazetteerVersion(ctx, version); err != nil {
			as.logger.Warn("invalidating validation cache failed", zap.Error(err))
		}
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	as.logger.Info("gazetteer seed completed",
		zap.String("gazetteer_version", version),
		zap.Int("records", written),
		zap.Int("indexes_built", result.IndexesBuilt),
		zap.Int64("processing_time_ms", result.ProcessingTimeMs))
	return result, nil
}

// BuildIndexes rebuilds backend and search indexes
func (as *AdminService) BuildIndexes(ctx context.Context) error {
	if err := as.loader.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("creating gazetteer indexes: %w", err)
	}
	if as.index != nil {
		if err := as.index.BuildIndexes(); err != nil {
			return fmt.Errorf("configuring search index: %w", err)
		}
	}
	as.logger.Info("all indexes built")
	return nil
}

// InvalidateCache drops stale validation entries, or all of them
func (as *AdminService) InvalidateCache(ctx context.Context, all bool) error {
	if as.validation == nil || as.validation.Cache() == nil {
		return nil
	}
	cache := as.validation.Cache()
	if all {
		return cache.Clear(ctx)
	}
	return cache.InvalidateByGazetteerVersion(ctx, as.validation.GazetteerVersion())
}

// GetSystemStats gathers counters from every component
func (as *AdminService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &SystemStats{
		Uptime: time.Since(as.startTime).Round(time.Second).String(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       bToMb(m.Alloc),
			"total_alloc_mb": bToMb(m.TotalAlloc),
			"sys_mb":         bToMb(m.Sys),
			"num_gc":         m.NumGC,
			"goroutines":     runtime.NumGoroutine(),
		},
	}

	count, err := as.loader.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting gazetteer records: %w", err)
	}
	stats.GazetteerRecords = count

	if as.records != nil {
		counts, err := as.records.CountByPreprocessingStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting registry records: %w", err)
		}
		stats.Preprocessing = counts
	}

	if as.validation != nil {
		stats.GazetteerVersion = as.validation.GazetteerVersion()
		stats.Validation = as.validation.Stats()
		if cache := as.validation.Cache(); cache != nil {
			cs, err := cache.GetStats(ctx)
			if err != nil {
				as.logger.Warn("reading cache stats failed", zap.Error(err))
			} else {
				stats.Cache = cs
			}
		}
	}
	return stats, nil
}

// LoadGazetteerFile reads a JSON array of GazetteerRecord
func LoadGazetteerFile(path string) ([]models.GazetteerRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gazetteer file: %w", err)
	}
	var data []models.GazetteerRecord
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding gazetteer file: %w", err)
	}
	return data, nil
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
