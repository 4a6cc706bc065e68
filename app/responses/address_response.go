package responses

import (
	"time"

	"github.com/dea-registry/app/models"
)

// ValidateAddressResponse resultado de una validación
type ValidateAddressResponse struct {
	GazetteerVersion string                                `json:"gazetteer_version"`
	Validation       models.ComprehensiveAddressValidation `json:"validation"`
	ProcessingTimeMs int64                                 `json:"processing_time_ms"`
}

// ParsedAddress componentes extraídos de la dirección en una línea
type ParsedAddress struct {
	StreetType   string `json:"street_type,omitempty"`
	StreetName   string `json:"street_name"`
	StreetNumber string `json:"street_number,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	District     string `json:"district,omitempty"`
	Source       string `json:"source"` // libpostal | regex
}

// ParseValidateResponse parseo más validación
type ParseValidateResponse struct {
	Parsed ParsedAddress `json:"parsed"`
	ValidateAddressResponse
}

// StepResponse estado del flujo de validación por pasos
type StepResponse struct {
	Progress *models.StepValidationProgress `json:"progress"`
	NextStep int                            `json:"next_step"`
	Message  string                         `json:"message,omitempty"`
}

// SeedGazetteerResponse resultado de la carga del callejero
type SeedGazetteerResponse struct {
	ValidationPassed   bool     `json:"validation_passed"`
	Warnings           []string `json:"warnings,omitempty"`
	EstimatedBuildTime string   `json:"estimated_build_time,omitempty"`
	RecordsProcessed   int      `json:"records_processed"`
	RecordsWritten     int      `json:"records_written"`
	IndexesBuilt       int      `json:"indexes_built"`
	ProcessingTimeMs   int64    `json:"processing_time_ms"`
	DryRun             bool     `json:"dry_run"`
	Message            string   `json:"message"`
}

// PreprocessRunResponse estado de un preprocesado
type PreprocessRunResponse struct {
	RunID             string     `json:"run_id"`
	Status            string     `json:"status"`
	Progress          float64    `json:"progress"` // 0.0 - 1.0
	Total             int        `json:"total"`
	Processed         int        `json:"processed"`
	Succeeded         int        `json:"succeeded"`
	Failed            int        `json:"failed"`
	PermanentlyFailed int        `json:"permanently_failed"`
	Message           string     `json:"message"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// ErrorResponse response de error
type ErrorResponse struct {
	Error     string      `json:"error"`             // Código de error
	Message   string      `json:"message"`           // Mensaje para el operador
	Details   interface{} `json:"details,omitempty"` // Detalle adicional
	Timestamp string      `json:"timestamp"`
}

// SuccessResponse response genérica de éxito
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse response de salud
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
