// Package mapview is the interactive map view controller: it turns buildings,
// routes and the caller's interaction state into one render frame, and drives
// the camera of an underlying map engine through a small command surface.
package mapview

import "slices"

// MarkerState is the single visual state of a building marker.
type MarkerState string

const (
	MarkerNormal          MarkerState = "normal"
	MarkerHovered         MarkerState = "hovered"
	MarkerSelected        MarkerState = "selected"
	MarkerInViewedRoute   MarkerState = "in-viewed-route"
	MarkerInRouteCreation MarkerState = "in-route-creation"
)

// Context is the interaction state owned by the surrounding application.
// RouteCreation and ViewedRoute are ordered: a marker's badge is its position.
type Context struct {
	SelectedID    string   `json:"selected_id,omitempty"`
	HoveredID     string   `json:"hovered_id,omitempty"`
	RouteCreation []string `json:"route_creation,omitempty"`
	ViewedRoute   []string `json:"viewed_route,omitempty"`
}

// ResolveMarkerState maps id to exactly one state. Priority, highest first:
// in-route-creation, in-viewed-route, selected, hovered, normal.
func ResolveMarkerState(id string, ctx Context) MarkerState {
	switch {
	case slices.Contains(ctx.RouteCreation, id):
		return MarkerInRouteCreation
	case slices.Contains(ctx.ViewedRoute, id):
		return MarkerInViewedRoute
	case id != "" && id == ctx.SelectedID:
		return MarkerSelected
	case id != "" && id == ctx.HoveredID:
		return MarkerHovered
	default:
		return MarkerNormal
	}
}

// BadgeFor returns the 1-based position of id in the ordered set that decided
// its state, or 0 when the marker carries no badge.
func BadgeFor(id string, ctx Context) int {
	switch ResolveMarkerState(id, ctx) {
	case MarkerInRouteCreation:
		return slices.Index(ctx.RouteCreation, id) + 1
	case MarkerInViewedRoute:
		return slices.Index(ctx.ViewedRoute, id) + 1
	default:
		return 0
	}
}

// MarkerStyle is how a marker is drawn.
type MarkerStyle struct {
	Size   int    `json:"size"` // px
	ZIndex int    `json:"z_index"`
	Color  string `json:"color"`
}

var markerStyles = map[MarkerState]MarkerStyle{
	MarkerNormal:          {Size: 28, ZIndex: 1, Color: "#6b7280"},
	MarkerHovered:         {Size: 34, ZIndex: 2, Color: "#2563eb"},
	MarkerSelected:        {Size: 40, ZIndex: 3, Color: "#1d4ed8"},
	MarkerInViewedRoute:   {Size: 44, ZIndex: 4, Color: "#059669"},
	MarkerInRouteCreation: {Size: 48, ZIndex: 5, Color: "#d97706"},
}

// StyleFor returns the style of a state. Size and z-index grow with priority.
func StyleFor(s MarkerState) MarkerStyle {
	if st, ok := markerStyles[s]; ok {
		return st
	}
	return markerStyles[MarkerNormal]
}
