package postgres_test

import (
	"math"
	"testing"

	"github.com/samirrijal/archmap/internal/adapters/postgres"
	"github.com/samirrijal/archmap/internal/core/domain"
)

func TestGeometryPolylineRoundTrip(t *testing.T) {
	g := &domain.GeoLineString{Coordinates: []domain.GeoPoint{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}}

	encoded := postgres.EncodeGeometry(g)
	if encoded != "_p~iF~ps|U_ulLnnqC_mqNvxq`@" {
		t.Fatalf("unexpected encoding %q", encoded)
	}

	back, err := postgres.DecodeGeometry(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back.Coordinates) != 3 {
		t.Fatalf("expected 3 points, got %d", len(back.Coordinates))
	}
	for i, p := range back.Coordinates {
		want := g.Coordinates[i]
		if math.Abs(p.Lat-want.Lat) > 1e-5 || math.Abs(p.Lon-want.Lon) > 1e-5 {
			t.Errorf("point %d: expected %+v, got %+v", i, want, p)
		}
	}
}

func TestGeometryEmpty(t *testing.T) {
	if s := postgres.EncodeGeometry(nil); s != "" {
		t.Errorf("expected empty encoding, got %q", s)
	}
	g, err := postgres.DecodeGeometry("")
	if err != nil || g != nil {
		t.Errorf("expected nil geometry, got %+v, %v", g, err)
	}
	if d := postgres.RouteDistanceKm(nil); d != 0 {
		t.Errorf("expected 0 km, got %f", d)
	}
}

func TestRouteDistanceKm(t *testing.T) {
	g := &domain.GeoLineString{Coordinates: []domain.GeoPoint{
		{Lat: 52.0, Lon: 13.0},
		{Lat: 53.0, Lon: 13.0},
	}}
	// One degree of latitude is about 111 km.
	if d := postgres.RouteDistanceKm(g); d < 110 || d > 112 {
		t.Errorf("expected ~111 km, got %f", d)
	}
}
