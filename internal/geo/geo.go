// Package geo provides the geodesic helpers shared by the track sanitizer
// and the stability classifier: great-circle distance and the speed implied
// by two timestamped positions.
package geo

import (
	"math"
	"time"
)

const (
	// EarthRadiusMeters is the mean Earth radius used for haversine distance.
	EarthRadiusMeters = 6371000.0

	// MPSToKMH converts meters per second to kilometers per hour.
	MPSToKMH = 3.6
)

// LatLon is a position in decimal degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// Valid reports whether the position is finite and within
// [-90,90] latitude and [-180,180] longitude.
func (p LatLon) Valid() bool {
	return ValidLatLon(p.Lat, p.Lon)
}

// ValidLatLon reports whether lat/lon are finite degrees in range.
func ValidLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// DistanceMeters returns the great-circle (haversine) distance between two
// positions. Out-of-range or non-finite inputs propagate as NaN; callers are
// expected to have range-checked already.
func DistanceMeters(a, b LatLon) float64 {
	if !a.Valid() || !b.Valid() {
		return math.NaN()
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// ImpliedSpeedKmh returns the speed implied by covering the great-circle
// distance between a and b in the given elapsed time. A non-positive elapsed
// time yields 0 so that retroactive or zero-duration jumps never amplify the
// speed to infinity.
func ImpliedSpeedKmh(a, b LatLon, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return DistanceMeters(a, b) / elapsed.Seconds() * MPSToKMH
}
