package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchingThresholds tuning of the search tiers and scorer
type MatchingThresholds struct {
	FuzzyThreshold               float64 `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
	MaxFuzzyResults              int     `yaml:"max_fuzzy_results" json:"max_fuzzy_results"`
	FuzzyNumberBonus             float64 `yaml:"fuzzy_number_bonus" json:"fuzzy_number_bonus"`
	GeoRadiusMeters              float64 `yaml:"geo_radius_meters" json:"geo_radius_meters"`
	StreetValidatorMinSimilarity float64 `yaml:"street_validator_min_similarity" json:"street_validator_min_similarity"`
	FullMatchMinScore            float64 `yaml:"full_match_min_score" json:"full_match_min_score"`
	GeoMinTextSimilarity         float64 `yaml:"geo_min_text_similarity" json:"geo_min_text_similarity"`
	ValidConfidence              float64 `yaml:"valid_confidence" json:"valid_confidence"`
	ValidatedStatusConfidence    float64 `yaml:"validated_status_confidence" json:"validated_status_confidence"`
	NameSimilarityOK             float64 `yaml:"name_similarity_ok" json:"name_similarity_ok"`
	CoordinateToleranceMeters    float64 `yaml:"coordinate_tolerance_meters" json:"coordinate_tolerance_meters"`
	StepCoordinateSkipMeters     float64 `yaml:"step_coordinate_skip_meters" json:"step_coordinate_skip_meters"`
}

// BatchCfg bulk preprocessing limits
type BatchCfg struct {
	Size          int           `yaml:"size" json:"size"`
	Cooldown      time.Duration `yaml:"cooldown" json:"cooldown"`
	RecordTimeout time.Duration `yaml:"record_timeout" json:"record_timeout"`
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	RatePerSecond float64       `yaml:"rate_per_second" json:"rate_per_second"`
}

type ValidatorConfig struct {
	Matching     MatchingThresholds `yaml:"matching" json:"matching"`
	Batch        BatchCfg           `yaml:"batch" json:"batch"`
	UseLibpostal bool               `yaml:"use_libpostal" json:"use_libpostal"`
}

// Default values observed on the production registry
func Default() ValidatorConfig {
	return ValidatorConfig{
		Matching: MatchingThresholds{
			FuzzyThreshold:               0.6,
			MaxFuzzyResults:              10,
			FuzzyNumberBonus:             0.2,
			GeoRadiusMeters:              1000,
			StreetValidatorMinSimilarity: 0.5,
			FullMatchMinScore:            0.4,
			GeoMinTextSimilarity:         0.3,
			ValidConfidence:              0.6,
			ValidatedStatusConfidence:    0.95,
			NameSimilarityOK:             0.9,
			CoordinateToleranceMeters:    100,
			StepCoordinateSkipMeters:     50,
		},
		Batch: BatchCfg{
			Size:          10,
			Cooldown:      2 * time.Second,
			RecordTimeout: 20 * time.Second,
			MaxRetries:    3,
			RatePerSecond: 20,
		},
	}
}

// C process-wide config, set by Load. Components receive a copy at construction.
var C = Default()

// Load reads the YAML at path over the defaults. An empty path or a missing
// file keeps the defaults.
func Load(path string) (ValidatorConfig, error) {
	cfg := Default()
	if env := os.Getenv("VALIDATOR_CONFIG"); env != "" {
		path = env
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, err
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}
	// ENV overrides
	switch os.Getenv("USE_LIBPOSTAL") {
	case "0":
		cfg.UseLibpostal = false
	case "1":
		cfg.UseLibpostal = true
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Batch.Size = n
		}
	}
	cfg.fillZeroes()
	C = cfg
	return cfg, nil
}

// fillZeroes restores defaults for fields a partial YAML left at zero
func (c *ValidatorConfig) fillZeroes() {
	d := Default()
	m := &c.Matching
	if m.FuzzyThreshold <= 0 {
		m.FuzzyThreshold = d.Matching.FuzzyThreshold
	}
	if m.MaxFuzzyResults <= 0 {
		m.MaxFuzzyResults = d.Matching.MaxFuzzyResults
	}
	if m.GeoRadiusMeters <= 0 {
		m.GeoRadiusMeters = d.Matching.GeoRadiusMeters
	}
	if m.ValidConfidence <= 0 {
		m.ValidConfidence = d.Matching.ValidConfidence
	}
	if m.ValidatedStatusConfidence <= 0 {
		m.ValidatedStatusConfidence = d.Matching.ValidatedStatusConfidence
	}
	if m.NameSimilarityOK <= 0 {
		m.NameSimilarityOK = d.Matching.NameSimilarityOK
	}
	if m.CoordinateToleranceMeters <= 0 {
		m.CoordinateToleranceMeters = d.Matching.CoordinateToleranceMeters
	}
	if m.StepCoordinateSkipMeters <= 0 {
		m.StepCoordinateSkipMeters = d.Matching.StepCoordinateSkipMeters
	}
	if c.Batch.Size <= 0 {
		c.Batch.Size = d.Batch.Size
	}
	if c.Batch.RecordTimeout <= 0 {
		c.Batch.RecordTimeout = d.Batch.RecordTimeout
	}
	if c.Batch.MaxRetries <= 0 {
		c.Batch.MaxRetries = d.Batch.MaxRetries
	}
	if c.Batch.RatePerSecond <= 0 {
		c.Batch.RatePerSecond = d.Batch.RatePerSecond
	}
}

func RequestTimeout() time.Duration { return 1500 * time.Millisecond }
