package requests

import "github.com/dea-registry/app/models"

// ValidateAddressRequest request de validación de una dirección estructurada
type ValidateAddressRequest struct {
	StreetType   string              `json:"street_type"`                    // Tipo de vía tal como viene del registro
	StreetName   string              `json:"street_name" binding:"required"` // Nombre de la vía
	StreetNumber string              `json:"street_number,omitempty"`        // Número, admite "s/n" y sufijos
	PostalCode   string              `json:"postal_code,omitempty"`          // Código postal de 5 dígitos
	District     string              `json:"district,omitempty"`             // Distrito en texto libre
	Coordinates  *models.Coordinates `json:"coordinates,omitempty"`          // Coordenadas declaradas
}

// Query converts the request to the matcher input
func (r ValidateAddressRequest) Query() models.AddressQuery {
	return models.AddressQuery{
		StreetType:   r.StreetType,
		StreetName:   r.StreetName,
		StreetNumber: r.StreetNumber,
		PostalCode:   r.PostalCode,
		District:     r.District,
		Coordinates:  r.Coordinates,
	}
}

// ParseValidateRequest dirección en una sola línea
type ParseValidateRequest struct {
	Address string `json:"address" binding:"required"`
}

// ExecuteStepRequest payload de un paso; sólo se lee el campo del paso ejecutado
type ExecuteStepRequest struct {
	SelectedAddress *models.GazetteerRecord `json:"selected_address,omitempty"` // Paso 1
	PostalCode      string                  `json:"postal_code,omitempty"`      // Paso 2
	District        string                  `json:"district,omitempty"`         // Paso 3
	Coordinates     *models.Coordinates     `json:"coordinates,omitempty"`      // Paso 4
}

// SeedGazetteerRequest carga de una versión del callejero
type SeedGazetteerRequest struct {
	GazetteerVersion string                   `json:"gazetteer_version" binding:"required"`
	Data             []models.GazetteerRecord `json:"data" binding:"required"`
	RebuildIndexes   bool                     `json:"rebuild_indexes,omitempty"`
}

// InvalidateCacheRequest all=true vacía la caché completa
type InvalidateCacheRequest struct {
	All bool `json:"all,omitempty"`
}

// PreprocessRequest lanza un preprocesado masivo
type PreprocessRequest struct {
	RetryFailed bool `json:"retry_failed,omitempty"`
	Limit       int  `json:"limit,omitempty" binding:"gte=0"`
}
