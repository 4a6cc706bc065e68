package models

import (
	"strconv"
	"time"
)

// Coordinates WGS84 lat/lon pair
type Coordinates struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// GazetteerRecord official callejero entry (street segment + house number)
type GazetteerRecord struct {
	ID                   string    `bson:"_id" json:"id" db:"id"`                                                  // Identificador del registro
	SegmentID            string    `bson:"segment_id" json:"segment_id" db:"segment_id"`                           // Código del tramo de vía
	StreetClass          string    `bson:"street_class" json:"street_class" db:"street_class"`                     // CALLE, AVENIDA, PLAZA...
	StreetName           string    `bson:"street_name" json:"street_name" db:"street_name"`                        // Nombre oficial con tildes
	StreetNameNormalized string    `bson:"street_name_normalized" json:"street_name_normalized" db:"street_name_normalized"` // Nombre sin tildes, minúsculas
	StreetNameKey        string    `bson:"street_name_key" json:"street_name_key" db:"street_name_key"`            // Normalizado y sin artículo inicial
	HouseNumber          *int      `bson:"house_number,omitempty" json:"house_number,omitempty" db:"house_number"` // Número de portal
	NumberSuffix         string    `bson:"number_suffix,omitempty" json:"number_suffix,omitempty" db:"number_suffix"` // Calificador (B, DUP...)
	PostalCode           string    `bson:"postal_code" json:"postal_code" db:"postal_code"`                        // Código postal (5 caracteres)
	DistrictCode         int       `bson:"district_code" json:"district_code" db:"district_code"`                  // 1-21
	DistrictName         string    `bson:"district_name" json:"district_name" db:"district_name"`
	NeighborhoodName     string    `bson:"neighborhood_name,omitempty" json:"neighborhood_name,omitempty" db:"neighborhood_name"`
	Latitude             float64   `bson:"latitude" json:"latitude" db:"latitude"`
	Longitude            float64   `bson:"longitude" json:"longitude" db:"longitude"`
	Location             GeoPoint  `bson:"location" json:"-" db:"-"`                                                // GeoJSON para índice 2dsphere
	GazetteerVersion     string    `bson:"gazetteer_version,omitempty" json:"gazetteer_version,omitempty" db:"gazetteer_version"`
	UpdatedAt            time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty" db:"updated_at"`
}

// GeoPoint GeoJSON point, coordinates are (lon, lat)
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from lat/lon
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Coordinates returns the record position
func (r *GazetteerRecord) Coordinates() Coordinates {
	return Coordinates{Latitude: r.Latitude, Longitude: r.Longitude}
}

// HouseNumberString returns the portal number as text, empty when absent
func (r *GazetteerRecord) HouseNumberString() string {
	if r.HouseNumber == nil {
		return ""
	}
	return strconv.Itoa(*r.HouseNumber)
}

// FullStreet returns e.g. "CALLE GRAN VÍA"
func (r *GazetteerRecord) FullStreet() string {
	if r.StreetClass == "" {
		return r.StreetName
	}
	return r.StreetClass + " " + r.StreetName
}

// IntPtr helper
func IntPtr(v int) *int { return &v }
