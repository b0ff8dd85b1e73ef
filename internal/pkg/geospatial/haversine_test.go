package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// Brandenburger Tor to Fernsehturm is ~2.2 km
	d := geospatial.Haversine(52.5163, 13.3777, 52.5208, 13.4094)
	if d < 2100 || d > 2300 {
		t.Errorf("expected ~2.2 km, got %.0f m", d)
	}
	if got := geospatial.Haversine(52.5, 13.4, 52.5, 13.4); got != 0 {
		t.Errorf("expected 0 for identical points, got %f", got)
	}
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	const lat, lon, r = 52.52, 13.405, 1500.0
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, r)

	if !(minLat < lat && lat < maxLat && minLon < lon && lon < maxLon) {
		t.Fatalf("center outside box: %f,%f %f,%f", minLat, minLon, maxLat, maxLon)
	}
	// every point on the radius must fall inside the box
	for _, p := range geospatial.BuildCircle(lat, lon, r/1000*0.99) {
		if p[1] < minLat || p[1] > maxLat || p[0] < minLon || p[0] > maxLon {
			t.Errorf("point %v on the radius lies outside the box", p)
		}
	}
	// the box should not be wildly larger than the radius
	if span := geospatial.Haversine(minLat, lon, maxLat, lon); math.Abs(span-2*r) > 2*r*0.02 {
		t.Errorf("expected north-south span ~%.0f m, got %.0f m", 2*r, span)
	}
}
