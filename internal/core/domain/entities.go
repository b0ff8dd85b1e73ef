package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when an entity does not exist.
var ErrNotFound = errors.New("not found")

// TransportMode tags how a route is meant to be travelled.
type TransportMode string

const (
	TransportWalking TransportMode = "walking"
	TransportCycling TransportMode = "cycling"
	TransportDriving TransportMode = "driving"
	TransportTransit TransportMode = "transit"
)

// Valid reports whether m is one of the known transport modes.
func (m TransportMode) Valid() bool {
	switch m {
	case TransportWalking, TransportCycling, TransportDriving, TransportTransit:
		return true
	}
	return false
}

// Building is a point of interest rendered as a marker on the map.
type Building struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  GeoPoint  `json:"location"`
	ImageURL  string    `json:"image_url,omitempty"`
	Rating    float64   `json:"rating"`
	Address   string    `json:"address,omitempty"`
	Architect string    `json:"architect,omitempty"`
	Year      int       `json:"year,omitempty"`
	Distance  *float64  `json:"distance,omitempty"` // computed field, meters
	CreatedAt time.Time `json:"created_at"`
}

// Route is an ordered path through several buildings.
type Route struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	TransportMode TransportMode  `json:"transport_mode"`
	Geometry      *GeoLineString `json:"geometry,omitempty"`
	BuildingIDs   []string       `json:"building_ids"`
	DistanceKm    float64        `json:"distance_km"` // derived from geometry
	CreatedAt     time.Time      `json:"created_at"`
}

// HasGeometry reports whether the route carries at least one coordinate.
func (r *Route) HasGeometry() bool {
	return r.Geometry != nil && len(r.Geometry.Coordinates) > 0
}

// Camera is the center and zoom of a map view.
type Camera struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}
