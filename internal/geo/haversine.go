// Package geo great-circle helpers for WGS84 coordinates.
package geo

import "math"

// EarthRadiusMeters mean Earth radius
const EarthRadiusMeters = 6371008.8

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineMeters distance between two lat/lon points
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(a))
}

// BoundingBox lat/lon box that contains the circle of radiusMeters around
// (lat, lon). Used as an index prefilter; callers still check the exact distance.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi
	cos := math.Cos(toRad(lat))
	if cos < 1e-6 {
		cos = 1e-6
	}
	dLon := dLat / cos
	return lat - dLat, lon - dLon, lat + dLat, lon + dLon
}

// OffsetNorth point radiusMeters due north of (lat, lon), handy for fixtures
func OffsetNorth(lat, lon, meters float64) (float64, float64) {
	return lat + meters/EarthRadiusMeters*180/math.Pi, lon
}

// Madrid municipality bounds, loose
const (
	MadridMinLat = 40.30
	MadridMaxLat = 40.65
	MadridMinLon = -3.90
	MadridMaxLon = -3.50
)

// InMadrid reports whether the point falls inside the municipality box
func InMadrid(lat, lon float64) bool {
	return lat >= MadridMinLat && lat <= MadridMaxLat && lon >= MadridMinLon && lon <= MadridMaxLon
}
