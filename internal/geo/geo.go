// Package geo holds the spherical geometry used for route distances,
// agent headings and playback interpolation.
//
// All inputs are WGS-84 degrees. Distances use the haversine formula on a
// sphere of radius EarthRadiusKm.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Coordinate is an immutable latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is finite and within the usual degree ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceKm returns the great-circle distance between a and b in kilometers.
func DistanceKm(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDeg returns the initial heading from a towards b in degrees,
// normalised to [0, 360). Coincident points yield 0.
func BearingDeg(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	if x == 0 && y == 0 {
		return 0
	}

	bearing := math.Atan2(y, x) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	if bearing >= 360 || math.IsNaN(bearing) {
		return 0
	}
	return bearing
}

// PathDistanceKm sums DistanceKm over consecutive points.
func PathDistanceKm(path []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += DistanceKm(path[i-1], path[i])
	}
	return total
}

// Interpolate returns the point at fraction along the straight lat/lng line
// from a to b. Fraction 0 is a, fraction 1 is b.
func Interpolate(a, b Coordinate, fraction float64) Coordinate {
	switch fraction {
	case 0:
		return a
	case 1:
		return b
	}
	return Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*fraction,
		Lng: a.Lng + (b.Lng-a.Lng)*fraction,
	}
}

// Waypoints splits the segment a→b into n equal steps and returns the n+1
// points including both endpoints. n < 1 is treated as 1.
func Waypoints(a, b Coordinate, n int) []Coordinate {
	if n < 1 {
		n = 1
	}
	out := make([]Coordinate, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, Interpolate(a, b, float64(i)/float64(n)))
	}
	return out
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
