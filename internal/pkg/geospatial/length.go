package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// LineLengthKm returns the great-circle length of a lat/lon sequence in km.
func LineLengthKm(lats, lons []float64) float64 {
	n := min(len(lats), len(lons))
	if n < 2 {
		return 0
	}
	ls := make(orb.LineString, n)
	for i := 0; i < n; i++ {
		ls[i] = orb.Point{lons[i], lats[i]}
	}
	return geo.LengthHaversine(ls) / 1000
}
