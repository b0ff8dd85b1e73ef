package main

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/archmap/internal/adapters/postgres"
	"github.com/samirrijal/archmap/internal/core/domain"
)

// FeatureSet is what one GeoJSON source contributes.
type FeatureSet struct {
	Buildings []domain.Building
	Routes    []domain.Route
	Skipped   []string
}

// ParseFeatureCollection turns Point features into buildings and LineString
// features into routes. Features that cannot be used are listed in Skipped.
func ParseFeatureCollection(raw []byte) (*FeatureSet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, err
	}

	set := &FeatureSet{}
	for i, f := range fc.Features {
		id := featureID(f)
		if id == "" {
			set.Skipped = append(set.Skipped, fmt.Sprintf("feature %d has no id", i))
			continue
		}

		switch g := f.Geometry.(type) {
		case orb.Point:
			loc := domain.GeoPoint{Lat: g.Lat(), Lon: g.Lon()}
			if !loc.Valid() {
				set.Skipped = append(set.Skipped, fmt.Sprintf("building %s: invalid location", id))
				continue
			}
			set.Buildings = append(set.Buildings, domain.Building{
				ID:        id,
				Name:      f.Properties.MustString("name", id),
				Location:  loc,
				ImageURL:  f.Properties.MustString("image_url", ""),
				Rating:    f.Properties.MustFloat64("rating", 0),
				Address:   f.Properties.MustString("address", ""),
				Architect: f.Properties.MustString("architect", ""),
				Year:      f.Properties.MustInt("year", 0),
			})
		case orb.LineString:
			mode := domain.TransportMode(f.Properties.MustString("transport_mode", string(domain.TransportWalking)))
			if !mode.Valid() {
				set.Skipped = append(set.Skipped, fmt.Sprintf("route %s: unknown transport mode %q", id, mode))
				continue
			}
			geom := &domain.GeoLineString{Coordinates: make([]domain.GeoPoint, len(g))}
			for j, p := range g {
				geom.Coordinates[j] = domain.GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
			}
			set.Routes = append(set.Routes, domain.Route{
				ID:            id,
				Name:          f.Properties.MustString("name", id),
				TransportMode: mode,
				Geometry:      geom,
				BuildingIDs:   stringSlice(f.Properties["building_ids"]),
				DistanceKm:    postgres.RouteDistanceKm(geom),
			})
		default:
			set.Skipped = append(set.Skipped, fmt.Sprintf("feature %s: unsupported geometry %s", id, f.Geometry.GeoJSONType()))
		}
	}
	return set, nil
}

func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return f.Properties.MustString("id", "")
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
