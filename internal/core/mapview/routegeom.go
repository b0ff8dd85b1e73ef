package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/archmap/internal/core/domain"
)

// Route line emphasis.
const (
	selectedRouteWidth   = 5
	selectedRouteOpacity = 0.9
	hoveredRouteWidth    = 3
	hoveredRouteOpacity  = 0.6
	routeColor           = "#2563eb"
)

// ActiveRoute returns the selected route, else the hovered one. selected is
// true when the selected id won.
func ActiveRoute(routes []domain.Route, selectedID, hoveredID string) (r *domain.Route, selected bool) {
	for _, id := range []string{selectedID, hoveredID} {
		if id == "" {
			continue
		}
		for i := range routes {
			if routes[i].ID == id {
				return &routes[i], id == selectedID
			}
		}
	}
	return nil, false
}

// ProjectRoute builds the route layer for the active route: the path as a
// LineString plus start and end points. It returns nil when no route is
// active or the active route has no geometry; no straight-line fallback is
// drawn between member buildings.
func ProjectRoute(routes []domain.Route, selectedID, hoveredID string) *geojson.FeatureCollection {
	r, selected := ActiveRoute(routes, selectedID, hoveredID)
	if r == nil {
		return nil
	}
	return RouteLayer(r, selected)
}

// RouteLayer renders one route. It returns nil for a route without geometry.
func RouteLayer(r *domain.Route, selected bool) *geojson.FeatureCollection {
	if !r.HasGeometry() {
		return nil
	}
	coords := r.Geometry.Coordinates
	line := make(orb.LineString, len(coords))
	for i, c := range coords {
		line[i] = orb.Point{c.Lon, c.Lat}
	}

	width, opacity := hoveredRouteWidth, hoveredRouteOpacity
	if selected {
		width, opacity = selectedRouteWidth, selectedRouteOpacity
	}

	path := geojson.NewFeature(line)
	path.ID = r.ID
	path.Properties["role"] = "path"
	path.Properties["name"] = r.Name
	path.Properties["transport_mode"] = string(r.TransportMode)
	path.Properties["selected"] = selected
	path.Properties["line_width"] = width
	path.Properties["line_opacity"] = opacity
	path.Properties["line_color"] = routeColor

	start := geojson.NewFeature(line[0])
	start.Properties["role"] = "start"
	end := geojson.NewFeature(line[len(line)-1])
	end.Properties["role"] = "end"

	fc := geojson.NewFeatureCollection()
	fc.Append(path)
	fc.Append(start)
	fc.Append(end)
	return fc
}
