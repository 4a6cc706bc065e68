package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFreeTextAddress_Regex(t *testing.T) {
	tests := []struct {
		raw  string
		want ParsedAddress
	}{
		{
			raw:  "Calle Gran Vía, 1, 28013 Madrid",
			want: ParsedAddress{StreetType: "Calle", StreetName: "Gran Vía", StreetNumber: "1", PostalCode: "28013"},
		},
		{
			raw:  "Pº de la Chopera nº 4",
			want: ParsedAddress{StreetType: "Pº", StreetName: "de la Chopera", StreetNumber: "4"},
		},
		{
			raw:  "C/Alcalá 50 (Distrito Centro)",
			want: ParsedAddress{StreetType: "C", StreetName: "Alcalá", StreetNumber: "50", District: "Centro"},
		},
		{
			raw:  "Plaza 2 de Mayo 3, Madrid, España",
			want: ParsedAddress{StreetType: "Plaza", StreetName: "2 de Mayo", StreetNumber: "3"},
		},
		{
			raw:  "Avda. de Córdoba s/n 28026",
			want: ParsedAddress{StreetType: "Avda.", StreetName: "de Córdoba", StreetNumber: "s/n", PostalCode: "28026"},
		},
		{
			raw:  "Mayor",
			want: ParsedAddress{StreetName: "Mayor"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseFreeTextAddress(tt.raw, false)
			tt.want.Source = SourceRegex
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsedAddress_Query(t *testing.T) {
	q := ParseFreeTextAddress("Paseo de la Castellana 100, 28046", false).Query()
	assert.Equal(t, "Paseo", q.StreetType)
	assert.Equal(t, "de la Castellana", q.StreetName)
	assert.Equal(t, "100", q.StreetNumber)
	assert.Equal(t, "28046", q.PostalCode)
	assert.Nil(t, q.Coordinates)
}
