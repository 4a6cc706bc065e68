package models

// MatchType how a candidate was found
type MatchType string

const (
	MatchTypeExact      MatchType = "exact"
	MatchTypeFuzzy      MatchType = "fuzzy"
	MatchTypePartial    MatchType = "partial"
	MatchTypeGeographic MatchType = "geographic"
	MatchTypeNone       MatchType = "none"
)

// OverallStatus estado final de la validación
type OverallStatus string

const (
	StatusValid       OverallStatus = "valid"
	StatusNeedsReview OverallStatus = "needs_review"
	StatusInvalid     OverallStatus = "invalid"
)

// ScoredCandidate gazetteer record plus scoring, created per search call
type ScoredCandidate struct {
	Record         GazetteerRecord `json:"record"`
	Confidence     float64         `json:"confidence"`                // [0,1]
	MatchType      MatchType       `json:"match_type"`
	Similarity     float64         `json:"similarity"`                // Similitud del nombre de vía
	DistanceMeters *float64        `json:"distance_meters,omitempty"` // Solo coincidencias geográficas
	Warnings       []string        `json:"warnings,omitempty"`
}

// SearchResult resultado de la búsqueda multiestrategia
type SearchResult struct {
	IsValid     bool              `json:"is_valid"`
	Confidence  float64           `json:"confidence"`
	MatchType   MatchType         `json:"match_type"`
	Suggestions []ScoredCandidate `json:"suggestions"`
	Errors      []string          `json:"errors"`
	Warnings    []string          `json:"warnings"`
}

// FieldValidation comparison of one input field against the official value.
// Built only through the matcher constructors so NeedsCorrection always
// reflects the comparison that produced it.
type FieldValidation struct {
	Input           string  `json:"input"`
	Official        string  `json:"official,omitempty"`
	NeedsCorrection bool    `json:"needs_correction"`
	Similarity      float64 `json:"similarity"`
}

// CoordinateValidation coordinates vs official position
type CoordinateValidation struct {
	Input           *Coordinates `json:"input,omitempty"`
	Official        *Coordinates `json:"official,omitempty"`
	DistanceMeters  *float64     `json:"distance_meters,omitempty"`
	NeedsCorrection bool         `json:"needs_correction"`
	NeedsReview     bool         `json:"needs_review"`
}

// ValidationDetails per-field breakdown against the best candidate
type ValidationDetails struct {
	StreetName   FieldValidation      `json:"street_name"`
	StreetType   FieldValidation      `json:"street_type"`
	StreetNumber FieldValidation      `json:"street_number"`
	PostalCode   FieldValidation      `json:"postal_code"`
	District     FieldValidation      `json:"district"`
	Coordinates  CoordinateValidation `json:"coordinates"`
}

// AnyCorrection reports whether any field disagrees with the official data
func (d ValidationDetails) AnyCorrection() bool {
	return d.StreetName.NeedsCorrection ||
		d.StreetType.NeedsCorrection ||
		d.StreetNumber.NeedsCorrection ||
		d.PostalCode.NeedsCorrection ||
		d.District.NeedsCorrection ||
		d.Coordinates.NeedsCorrection ||
		d.Coordinates.NeedsReview
}

// ComprehensiveAddressValidation full answer of the validation orchestrator
type ComprehensiveAddressValidation struct {
	SearchResult       SearchResult      `json:"search_result"`
	ValidationDetails  ValidationDetails `json:"validation_details"`
	OverallStatus      OverallStatus     `json:"overall_status"`
	RecommendedActions []string          `json:"recommended_actions"`
}

// BestCandidate returns suggestion 0, nil when there is none
func (v *ComprehensiveAddressValidation) BestCandidate() *ScoredCandidate {
	if v == nil || len(v.SearchResult.Suggestions) == 0 {
		return nil
	}
	return &v.SearchResult.Suggestions[0]
}
