package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

func TestBuildCircle_Closed(t *testing.T) {
	ring := geospatial.BuildCircle(52.5, 13.4, 5)

	if len(ring) != 65 {
		t.Fatalf("expected 65 vertices, got %d", len(ring))
	}
	if ring[0] != ring[64] {
		t.Errorf("ring not closed: first %v, last %v", ring[0], ring[64])
	}
	if !ring.Closed() {
		t.Error("orb reports ring as open")
	}
}

func TestBuildCircle_ZeroRadius(t *testing.T) {
	ring := geospatial.BuildCircle(52.5, 13.4, 0)
	for i, p := range ring {
		if p[0] != 13.4 || p[1] != 52.5 {
			t.Fatalf("vertex %d = %v, expected center", i, p)
		}
	}
}

func TestBuildCircle_Radius(t *testing.T) {
	const lat, lon, r = 43.263, -2.935, 2.0
	ring := geospatial.BuildCircle(lat, lon, r)

	for i, p := range ring[:64] {
		d := geospatial.Haversine(lat, lon, p[1], p[0]) / 1000
		// per-axis scaling is approximate; 1% is plenty for a filter overlay
		if math.Abs(d-r) > r*0.01 {
			t.Errorf("vertex %d at %.4f km, expected ~%.1f km", i, d, r)
		}
	}

	// vertex 0 is due east, vertex 16 due north
	if ring[0][1] != lat || ring[0][0] <= lon {
		t.Errorf("vertex 0 should be due east of center, got %v", ring[0])
	}
	if math.Abs(ring[16][0]-lon) > 1e-9 || ring[16][1] <= lat {
		t.Errorf("vertex 16 should be due north of center, got %v", ring[16])
	}
}

func TestLineLengthKm(t *testing.T) {
	if got := geospatial.LineLengthKm([]float64{52.5}, []float64{13.4}); got != 0 {
		t.Errorf("single point length = %f, expected 0", got)
	}

	// one degree of latitude is ~111 km
	got := geospatial.LineLengthKm([]float64{52, 53}, []float64{13, 13})
	if got < 110 || got > 112 {
		t.Errorf("expected ~111 km, got %.2f", got)
	}
}
