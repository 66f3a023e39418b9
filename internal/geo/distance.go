// Package geo provides great-circle distance helpers on a spherical Earth.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the IUGG mean Earth radius.
const EarthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LatLng converts p to an s2 coordinate.
func (p Point) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadiusMeters
}

// PathLength sums the distances between consecutive points.
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// Within reports whether b lies within radiusMeters of a, inclusive.
func Within(a, b Point, radiusMeters float64) bool {
	return Distance(a, b) <= radiusMeters
}

// Offset returns the point reached by moving north and east of p by the given
// meters. It is accurate for the short hops used in location tests.
func Offset(p Point, northMeters, eastMeters float64) Point {
	dLat := northMeters / EarthRadiusMeters
	dLng := eastMeters / (EarthRadiusMeters * math.Cos(p.LatLng().Lat.Radians()))
	return Point{
		Lat: p.Lat + dLat*180/math.Pi,
		Lng: p.Lng + dLng*180/math.Pi,
	}
}
