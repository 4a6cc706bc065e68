package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Gran Vía", "gran via"},
		{"  PASEO   de la  Castellana ", "paseo de la castellana"},
		{"C/ Peñalver, 3-Izq.", "c penalver 3 izq"},
		{"Avda. de Córdoba", "avda de cordoba"},
		{"Calle Nuestra Señora de la Luz", "calle nuestra senora de la luz"},
		{"", ""},
		{"¡¿!!", ""},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Gran Vía", "C/ Peñalver, 3º-Izq.", "Ronda de Atocha\t\n12",
		"Glorieta de Ruiz Giménez", "Æther Straße", "São Paulo", "   ", "ÑANDÚ 7-B",
		"Plaza Mayor (acceso)", "1ª Travesía", "«Calle» 'Mayor'",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeStreetName_Articles(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"De la Chopera", "chopera"},
		{"de los Madrazo", "madrazo"},
		{"De las Delicias", "delicias"},
		{"del Prado", "prado"},
		{"de Alcalá", "alcala"},
		{"La Habana", "habana"},
		{"Los Yébenes", "yebenes"},
		{"El Pardo", "pardo"},
		// only one article is removed
		{"de la de Prueba", "de prueba"},
		// the article must be a whole word
		{"Delicias", "delicias"},
		{"Lavapiés", "lavapies"},
		{"Gran Vía", "gran via"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeStreetName(tc.in))
		})
	}
}

func TestExtractDistrictNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"2", 2},
		{"2. Arganzuela", 2},
		{"2 - Arganzuela", 2},
		{"Distrito 14", 14},
		{"distrito nº 7", 7},
		{"21", 21},
		{"Arganzuela", 2},
		{"Chamartín", 5},
		{"Distrito de Salamanca", 4},
		{"garbage", 0},
		{"22", 0},
		{"0", 0},
		{"", 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractDistrictNumber(tc.in))
		})
	}
}

func TestDistrictLabel(t *testing.T) {
	assert.Equal(t, "2. Arganzuela", DistrictLabel(2))
	assert.Equal(t, "", DistrictLabel(22))
}

func TestCanonicalStreetType(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Avda.", StreetAvenida, true},
		{"Av", StreetAvenida, true},
		{"C/", StreetCalle, true},
		{"CALLE", StreetCalle, true},
		{"Pza", StreetPlaza, true},
		{"Pso", StreetPaseo, true},
		{"Gta", StreetGlorieta, true},
		{"Rda.", StreetRonda, true},
		{"Travesía", StreetTravesia, true},
		{"Avnida", StreetAvenida, true},
		{"xyz", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := CanonicalStreetType(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStreetTypesEquivalent(t *testing.T) {
	assert.True(t, StreetTypesEquivalent("Avda", "AVENIDA"))
	assert.True(t, StreetTypesEquivalent("Cl", "Calle"))
	assert.True(t, StreetTypesEquivalent("Plz", "PLAZA"))
	assert.False(t, StreetTypesEquivalent("Calle", "Avenida"))
	assert.False(t, StreetTypesEquivalent("Paseo", "Plaza"))
}

func TestParseHouseNumber(t *testing.T) {
	n, suffix, ok := ParseHouseNumber("4B")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, "B", suffix)

	n, _, ok = ParseHouseNumber("Nº 12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, _, ok = ParseHouseNumber("12-14")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, _, ok = ParseHouseNumber("s/n")
	assert.False(t, ok)
	_, _, ok = ParseHouseNumber("")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("calle", "gran via", "1")
	assert.Equal(t, a, Fingerprint("calle", "gran via", "1"))
	assert.NotEqual(t, a, Fingerprint("calle", "gran via1", ""))
}
