package mapview_test

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/mapview"
)

func testRoutes() []domain.Route {
	return []domain.Route{
		{ID: "r1", Name: "Mitte", Geometry: &domain.GeoLineString{Coordinates: []domain.GeoPoint{
			{Lat: 52.520, Lon: 13.405}, {Lat: 52.516, Lon: 13.378}, {Lat: 52.509, Lon: 13.376},
		}}},
		{ID: "r2", Name: "Kreuzberg", Geometry: &domain.GeoLineString{Coordinates: []domain.GeoPoint{
			{Lat: 52.499, Lon: 13.418}, {Lat: 52.489, Lon: 13.424},
		}}},
		{ID: "r3", Name: "Unmapped", BuildingIDs: []string{"a", "b"}},
	}
}

func TestProjectRoute_SelectedWinsOverHovered(t *testing.T) {
	fc := mapview.ProjectRoute(testRoutes(), "r1", "r2")
	if fc == nil {
		t.Fatal("expected a route layer")
	}
	if len(fc.Features) != 3 {
		t.Fatalf("expected path plus start and end, got %d features", len(fc.Features))
	}
	path := fc.Features[0]
	if path.ID != "r1" {
		t.Errorf("expected r1, got %v", path.ID)
	}
	if path.Properties["line_width"] != 5 || path.Properties["line_opacity"] != 0.9 {
		t.Errorf("unexpected selected emphasis: %v", path.Properties)
	}
	line, ok := path.Geometry.(orb.LineString)
	if !ok || len(line) != 3 {
		t.Fatalf("expected 3-point line string, got %T", path.Geometry)
	}
	if line[0] != (orb.Point{13.405, 52.520}) {
		t.Errorf("expected lon/lat order, got %v", line[0])
	}
	if fc.Features[1].Geometry != line[0] || fc.Features[2].Geometry != line[2] {
		t.Error("start and end markers should sit on the line ends")
	}
}

func TestProjectRoute_HoveredFallback(t *testing.T) {
	fc := mapview.ProjectRoute(testRoutes(), "", "r2")
	if fc == nil {
		t.Fatal("expected a route layer")
	}
	if fc.Features[0].ID != "r2" {
		t.Errorf("expected r2, got %v", fc.Features[0].ID)
	}
	if fc.Features[0].Properties["line_width"] != 3 {
		t.Errorf("expected hover width, got %v", fc.Features[0].Properties["line_width"])
	}
}

func TestProjectRoute_NothingToDraw(t *testing.T) {
	tests := []struct {
		name              string
		selected, hovered string
	}{
		{"no selection", "", ""},
		{"unknown route", "nope", ""},
		{"route without geometry", "r3", "r1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fc := mapview.ProjectRoute(testRoutes(), tt.selected, tt.hovered); fc != nil {
				t.Errorf("expected nothing, got %d features", len(fc.Features))
			}
		})
	}
}
