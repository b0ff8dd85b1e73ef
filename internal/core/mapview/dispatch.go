package mapview

import (
	"log/slog"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/pkg/metrics"
)

// Click branches, also used as metric labels.
const (
	BranchMapClick = "map_click"
	BranchDeselect = "deselect"
)

// ClickRouter decides what a click on empty map space means. It is registered
// once per mounted surface and reads modes and callbacks through holders, so
// it always acts on the values of the latest Render.
type ClickRouter struct {
	modes     *Latest[Modes]
	callbacks *Latest[Callbacks]
	// closePopup closes whatever popup is open.
	closePopup func()
	logger     *slog.Logger
}

// NewClickRouter returns a router reading from the given holders.
func NewClickRouter(modes *Latest[Modes], callbacks *Latest[Callbacks], closePopup func(), logger *slog.Logger) *ClickRouter {
	if closePopup == nil {
		closePopup = func() {}
	}
	return &ClickRouter{modes: modes, callbacks: callbacks, closePopup: closePopup, logger: logger}
}

// Handle routes one map click and returns the branch taken.
func (r *ClickRouter) Handle(p domain.GeoPoint) string {
	modes := r.modes.Load()
	cb := r.callbacks.Load()

	r.closePopup()

	branch := BranchDeselect
	if modes.capturesClicks() {
		branch = BranchMapClick
	}
	metrics.MapClicks.WithLabelValues(branch).Inc()
	r.logger.Debug("map click", "lat", p.Lat, "lon", p.Lon, "branch", branch)

	switch branch {
	case BranchMapClick:
		if cb.OnMapClick != nil {
			cb.OnMapClick(p.Lat, p.Lon)
		}
	default:
		if cb.OnPointClick != nil {
			cb.OnPointClick(nil)
		}
	}
	return branch
}
