package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

// CircleSegments is the number of distinct vertices in a circle ring.
const CircleSegments = 64

const (
	kmPerDegreeLon = 111.32 // at the equator, scaled by cos(lat)
	kmPerDegreeLat = 110.574
)

// BuildCircle returns a closed ring approximating a circle of radiusKm around
// (lat, lon). The ring has CircleSegments+1 vertices and the last repeats the
// first. Per-axis degree scaling is good enough for city-scale radii (≤ 50 km).
func BuildCircle(lat, lon, radiusKm float64) orb.Ring {
	lonScale := radiusKm / (kmPerDegreeLon * math.Cos(toRad(lat)))
	latScale := radiusKm / kmPerDegreeLat

	ring := make(orb.Ring, CircleSegments+1)
	for i := 0; i < CircleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / CircleSegments
		ring[i] = orb.Point{
			lon + lonScale*math.Cos(theta),
			lat + latScale*math.Sin(theta),
		}
	}
	ring[CircleSegments] = ring[0]
	return ring
}
