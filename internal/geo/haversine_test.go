package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters(t *testing.T) {
	// Puerta del Sol -> Plaza de Cibeles
	d := HaversineMeters(40.4168, -3.7038, 40.4193, -3.6932)
	assert.InDelta(t, 940, d, 30)

	assert.Equal(t, 0.0, HaversineMeters(40.42, -3.70, 40.42, -3.70))
	assert.InDelta(t, HaversineMeters(40.0, -3.0, 40.1, -3.2), HaversineMeters(40.1, -3.2, 40.0, -3.0), 1e-9)
}

func TestOffsetNorth(t *testing.T) {
	lat, lon := OffsetNorth(40.42, -3.7025, 1000)
	assert.InDelta(t, 1000, HaversineMeters(40.42, -3.7025, lat, lon), 1e-6)
}

func TestBoundingBox_ContainsCircle(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(40.42, -3.70, 500)
	nLat, _ := OffsetNorth(40.42, -3.70, 499)
	assert.True(t, nLat < maxLat && nLat > minLat)
	assert.InDelta(t, 500, HaversineMeters(40.42, -3.70, 40.42, maxLon), 2)
	assert.Less(t, minLon, -3.70)
}

func TestInMadrid(t *testing.T) {
	assert.True(t, InMadrid(40.42, -3.70))
	assert.False(t, InMadrid(41.38, 2.17)) // Barcelona
}
