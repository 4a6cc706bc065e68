package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValidationCacheEntry cached validation result keyed by query fingerprint
type ValidationCacheEntry struct {
	ID               primitive.ObjectID             `bson:"_id,omitempty" json:"id,omitempty"`
	Fingerprint      string                         `bson:"fingerprint" json:"fingerprint"`         // SHA-256 de la consulta normalizada
	Query            AddressQuery                   `bson:"query" json:"query"`                     // Consulta original
	Result           ComprehensiveAddressValidation `bson:"result" json:"result"`
	OverallStatus    OverallStatus                  `bson:"overall_status" json:"overall_status"`
	Confidence       float64                        `bson:"confidence" json:"confidence"`
	GazetteerVersion string                         `bson:"gazetteer_version" json:"gazetteer_version"`
	CreatedAt        time.Time                      `bson:"created_at" json:"created_at"`
	LastAccessed     time.Time                      `bson:"last_accessed" json:"last_accessed"`
	AccessCount      int                            `bson:"access_count" json:"access_count"`
}

// NewValidationCacheEntry wraps a result for storage
func NewValidationCacheEntry(fingerprint string, q AddressQuery, result ComprehensiveAddressValidation, gazetteerVersion string) *ValidationCacheEntry {
	now := time.Now()
	return &ValidationCacheEntry{
		Fingerprint:      fingerprint,
		Query:            q,
		Result:           result,
		OverallStatus:    result.OverallStatus,
		Confidence:       result.SearchResult.Confidence,
		GazetteerVersion: gazetteerVersion,
		CreatedAt:        now,
		LastAccessed:     now,
		AccessCount:      1,
	}
}

// UpdateAccess bumps access stats
func (e *ValidationCacheEntry) UpdateAccess() {
	e.LastAccessed = time.Now()
	e.AccessCount++
}

// IsExpired true when older than ttl; ttl <= 0 never expires
func (e *ValidationCacheEntry) IsExpired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(e.CreatedAt) > ttl
}

// IsValidGazetteerVersion entries from an older callejero load are stale
func (e *ValidationCacheEntry) IsValidGazetteerVersion(currentVersion string) bool {
	return e.GazetteerVersion == currentVersion
}
