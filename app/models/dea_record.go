package models

import "time"

// PreprocessingStatus state of the bulk validation pass for a record
type PreprocessingStatus string

const (
	PreprocessingPending         PreprocessingStatus = "pending"
	PreprocessingInProgress      PreprocessingStatus = "processing"
	PreprocessingDone            PreprocessingStatus = "preprocessed"
	PreprocessingFailed          PreprocessingStatus = "failed"           // Reintentable
	PreprocessingFailedPermanent PreprocessingStatus = "failed_permanent" // Tope de reintentos alcanzado
)

// DeaRecord registro de un desfibrilador (DEA) en el registro municipal
type DeaRecord struct {
	ID           string   `bson:"_id" json:"id"`
	Name         string   `bson:"name" json:"name"`
	StreetType   string   `bson:"street_type" json:"street_type"`
	StreetName   string   `bson:"street_name" json:"street_name"`
	StreetNumber string   `bson:"street_number" json:"street_number"`
	PostalCode   string   `bson:"postal_code" json:"postal_code"`
	District     string   `bson:"district" json:"district"` // Texto libre tal como lo introdujo el titular
	Latitude     *float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude    *float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`

	AddressValidationStatus OverallStatus                   `bson:"address_validation_status,omitempty" json:"address_validation_status,omitempty"`
	AddressValidation       *ComprehensiveAddressValidation `bson:"address_validation,omitempty" json:"address_validation,omitempty"`
	AddressVerifiedAt       *time.Time                      `bson:"address_verified_at,omitempty" json:"address_verified_at,omitempty"`

	PreprocessingStatus  PreprocessingStatus `bson:"preprocessing_status" json:"preprocessing_status"`
	PreprocessingRetries int                 `bson:"preprocessing_retries" json:"preprocessing_retries"`
	PreprocessingError   string              `bson:"preprocessing_error,omitempty" json:"preprocessing_error,omitempty"`
	PreprocessedAt       *time.Time          `bson:"preprocessed_at,omitempty" json:"preprocessed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Query builds the validation input from the stored fields
func (r *DeaRecord) Query() AddressQuery {
	q := AddressQuery{
		StreetType:   r.StreetType,
		StreetName:   r.StreetName,
		StreetNumber: r.StreetNumber,
		PostalCode:   r.PostalCode,
		District:     r.District,
	}
	if r.Latitude != nil && r.Longitude != nil {
		q.Coordinates = &Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return q
}

// Field names accepted by RecordStore.UpdateRecordFields
const (
	FieldStreetType              = "street_type"
	FieldStreetName              = "street_name"
	FieldStreetNumber            = "street_number"
	FieldPostalCode              = "postal_code"
	FieldDistrict                = "district"
	FieldLatitude                = "latitude"
	FieldLongitude               = "longitude"
	FieldAddressValidationStatus = "address_validation_status"
	FieldAddressValidation       = "address_validation"
	FieldAddressVerifiedAt       = "address_verified_at"
	FieldPreprocessingStatus     = "preprocessing_status"
	FieldPreprocessingRetries    = "preprocessing_retries"
	FieldPreprocessingError      = "preprocessing_error"
	FieldPreprocessedAt          = "preprocessed_at"
)
