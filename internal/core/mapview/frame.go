package mapview

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/pkg/geospatial"
)

// Frame is everything a renderer needs to draw the current map view.
type Frame struct {
	Markers []Marker                   `json:"markers"`
	Route   *geojson.FeatureCollection `json:"route,omitempty"`
	Radius  *geojson.Feature           `json:"radius,omitempty"`
	Popup   *PopupView                 `json:"popup,omitempty"`
	Legend  []LegendEntry              `json:"legend"`
	Banner  string                     `json:"banner,omitempty"`
	Cursor  string                     `json:"cursor"`
}

// Marker is one building as drawn.
type Marker struct {
	ID       string          `json:"id"`
	Location domain.GeoPoint `json:"location"`
	Name     string          `json:"name"`
	ImageURL string          `json:"image_url,omitempty"`
	Rating   float64         `json:"rating"`
	State    MarkerState     `json:"state"`
	Style    MarkerStyle     `json:"style"`
	Badge    int             `json:"badge,omitempty"`
}

// PopupView is the open popup as drawn.
type PopupView struct {
	Kind       PopupKind         `json:"kind"`
	Generation uint64            `json:"generation,omitempty"`
	PointID    string            `json:"point_id"`
	Name       string            `json:"name"`
	ImageURL   string            `json:"image_url,omitempty"`
	Rating     float64           `json:"rating"`
	Actions    []PopupActionView `json:"actions,omitempty"`
}

// PopupActionView is one button on the detailed popup.
type PopupActionView struct {
	Action   PopupAction `json:"action"`
	Label    string      `json:"label"`
	Disabled bool        `json:"disabled,omitempty"`
}

// LegendEntry explains one marker state.
type LegendEntry struct {
	State MarkerState `json:"state"`
	Label string      `json:"label"`
	Color string      `json:"color"`
	Count int         `json:"count"`
}

// Radius is the search circle drawn while a radius mode is on.
type Radius struct {
	Center *domain.GeoPoint `json:"center,omitempty"`
	Km     float64          `json:"km"`
}

// Cursor hints.
const (
	CursorDefault   = "default"
	CursorCrosshair = "crosshair"
)

var legendOrder = []struct {
	state MarkerState
	label string
}{
	{MarkerNormal, "Building"},
	{MarkerHovered, "Hovered"},
	{MarkerSelected, "Selected"},
	{MarkerInViewedRoute, "On viewed route"},
	{MarkerInRouteCreation, "In new route"},
}

func buildLegend(markers []Marker) []LegendEntry {
	counts := make(map[MarkerState]int, len(legendOrder))
	for _, m := range markers {
		counts[m.State]++
	}
	out := make([]LegendEntry, 0, len(legendOrder))
	for _, l := range legendOrder {
		out = append(out, LegendEntry{
			State: l.state,
			Label: l.label,
			Color: StyleFor(l.state).Color,
			Count: counts[l.state],
		})
	}
	return out
}

func bannerFor(m Modes, ctx Context) string {
	switch {
	case m.Radius == RadiusMap:
		return "Click on the map to set the search center"
	case m.AddEntity:
		return "Click on the map to place the new building"
	case m.RouteCreation:
		return fmt.Sprintf("Creating a route: %d buildings added", len(ctx.RouteCreation))
	}
	return ""
}

func cursorFor(m Modes) string {
	if m.capturesClicks() {
		return CursorCrosshair
	}
	return CursorDefault
}

// radiusFeature returns the circle polygon, or nil when no circle is shown.
func radiusFeature(m Modes, r Radius) *geojson.Feature {
	if m.Radius == RadiusNone || m.Radius == "" || r.Center == nil || r.Km <= 0 {
		return nil
	}
	ring := geospatial.BuildCircle(r.Center.Lat, r.Center.Lon, r.Km)
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["radius_km"] = r.Km
	f.Properties["mode"] = string(m.Radius)
	return f
}

func markerFor(b domain.Building, ctx Context) Marker {
	state := ResolveMarkerState(b.ID, ctx)
	return Marker{
		ID:       b.ID,
		Location: b.Location,
		Name:     b.Name,
		ImageURL: b.ImageURL,
		Rating:   b.Rating,
		State:    state,
		Style:    StyleFor(state),
		Badge:    BadgeFor(b.ID, ctx),
	}
}
