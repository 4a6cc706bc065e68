package models

// AddressQuery user-submitted address, built once per validation call
type AddressQuery struct {
	StreetType   string       `json:"street_type,omitempty"`   // Tipo de vía libre ("Avda", "C/")
	StreetName   string       `json:"street_name" binding:"required"`
	StreetNumber string       `json:"street_number,omitempty"` // "4", "4B", "s/n"
	PostalCode   string       `json:"postal_code,omitempty"`   // 5 dígitos, comparación literal
	District     string       `json:"district,omitempty"`      // "2", "2. Arganzuela", "Distrito 2"
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

// StreetOnly returns a copy restricted to street name + type
func (q AddressQuery) StreetOnly() AddressQuery {
	return AddressQuery{
		StreetType: q.StreetType,
		StreetName: q.StreetName,
	}
}

// HasCoordinates reports whether GPS coordinates were supplied
func (q AddressQuery) HasCoordinates() bool {
	return q.Coordinates != nil
}
