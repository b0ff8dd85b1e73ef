package mapview

// RadiusMode says where the radius filter takes its center from.
type RadiusMode string

const (
	RadiusNone     RadiusMode = "none"
	RadiusLocation RadiusMode = "location" // device location
	RadiusMap      RadiusMode = "map"      // next map click
)

// Modes are the caller-owned toggles that change how map clicks are read.
type Modes struct {
	Radius        RadiusMode `json:"radius"`
	AddEntity     bool       `json:"add_entity"`
	RouteCreation bool       `json:"route_creation"`
}

// capturesClicks reports whether a map click should be forwarded to the
// application instead of being treated as a click on empty space.
func (m Modes) capturesClicks() bool {
	return m.Radius == RadiusMap || m.AddEntity
}
