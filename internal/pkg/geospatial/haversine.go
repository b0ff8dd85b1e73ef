// Package geospatial holds the great-circle helpers behind the building
// radius filter: distance ordering, the index prefilter box and the circle
// overlay drawn around the filter center.
package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Haversine returns the great-circle distance in meters between two lat/lon
// points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// BoundingBox returns the lat/lon box that contains every point within
// radiusMeters of (lat, lon). Candidates inside it still need a Haversine
// check; the box only narrows the index scan.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	b := geo.NewBoundAroundPoint(orb.Point{lon, lat}, radiusMeters)
	return b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon()
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
