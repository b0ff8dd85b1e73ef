package mapview

import (
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/pkg/metrics"
)

// Callbacks are the application's handlers. Any of them may be nil.
type Callbacks struct {
	// OnPointClick receives the clicked building id, or nil to deselect.
	OnPointClick     func(id *string)
	OnRouteClick     func(id string)
	OnAddToRoute     func(id string)
	OnStartRouteFrom func(id string)
	OnPointDetails   func(b domain.Building)
	OnRouteDetails   func(r domain.Route)
	OnMapClick       func(lat, lon float64)
	// OnViewportChange fires once per settled camera move.
	OnViewportChange func(cam domain.Camera)
}

// Props is the complete input of one render. Collections are replaced
// wholesale on every Render.
type Props struct {
	Buildings       []domain.Building
	Routes          []domain.Route
	Context         Context
	Modes           Modes
	Radius          Radius
	SelectedRouteID string
	HoveredRouteID  string
	Touch           bool
	Callbacks       Callbacks
}

// settleFunc runs with the controller locked once a move settles. The
// returned func, if any, runs after the lock is released.
type settleFunc func(cam domain.Camera) (after func())

// pendingMove is the continuation waiting for one camera command to settle.
type pendingMove struct {
	token uint64
	cmd   uint64
	off   func()
	fn    settleFunc
}

// Controller is the map view controller of one map session. Render and the
// event and command methods are safe for concurrent use; callbacks are always
// invoked without internal locks held.
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	clock   clock.Clock
	surface *Surface

	modes     *Latest[Modes]
	callbacks *Latest[Callbacks]
	router    *ClickRouter

	mu       sync.Mutex
	props    Props
	index    map[string]int
	popup    popupMachine
	token    uint64
	pending  *pendingMove
	delay    *clock.Timer
	offs     []func()
	mounted  bool
	onChange func()
}

// New returns a controller driving surface.
func New(surface *Surface, cfg Config, logger *slog.Logger) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.PopupSequencing == "" {
		cfg.PopupSequencing = SequenceCompletion
	}
	c := &Controller{
		cfg:       cfg,
		logger:    logger,
		clock:     cfg.Clock,
		surface:   surface,
		modes:     NewLatest(Modes{Radius: RadiusNone}),
		callbacks: NewLatest(Callbacks{}),
		index:     map[string]int{},
	}
	c.router = NewClickRouter(c.modes, c.callbacks, c.closePopupFromClick, logger)
	return c
}

// OnChange sets fn to be called when the frame changes on its own, e.g. when
// a popup opens after the camera settles. The caller should re-read Frame.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Mount attaches e to the surface and registers the click and move-end
// handlers. They stay registered until Unmount; mounting twice is a no-op.
func (c *Controller) Mount(e Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mounted {
		return
	}
	c.surface.Mount(e)
	c.offs = append(c.offs,
		e.OnClick(func(p domain.GeoPoint) { c.router.Handle(p) }),
		e.OnMoveEnd(c.handleMoveEnd),
	)
	c.mounted = true
}

// Unmount removes the handlers and detaches the engine. Pending moves and
// timers are dropped.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, off := range c.offs {
		off()
	}
	c.offs = nil
	c.cancelPendingLocked()
	if c.delay != nil {
		c.delay.Stop()
		c.delay = nil
	}
	c.surface.Unmount()
	c.mounted = false
}

// Render stores props and returns the frame to draw. Modes and callbacks are
// visible to the click handler before Render returns.
func (c *Controller) Render(p Props) Frame {
	if p.Modes.Radius == "" {
		p.Modes.Radius = RadiusNone
	}
	c.modes.Store(p.Modes)
	c.callbacks.Store(p.Callbacks)

	c.mu.Lock()
	defer c.mu.Unlock()
	p.Buildings = slices.Clone(p.Buildings)
	p.Routes = slices.Clone(p.Routes)
	c.props = p
	clear(c.index)
	for i, b := range p.Buildings {
		c.index[b.ID] = i
	}
	if st := c.popup.current(); st.Kind != PopupNone {
		if _, ok := c.index[st.ID]; !ok {
			c.popup.close()
		}
	}
	return c.frameLocked()
}

// Frame returns the frame for the props of the last Render.
func (c *Controller) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

// Popup returns the open popup.
func (c *Controller) Popup() Popup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popup.current()
}

func (c *Controller) frameLocked() Frame {
	p := c.props
	markers := make([]Marker, 0, len(p.Buildings))
	for _, b := range p.Buildings {
		markers = append(markers, markerFor(b, p.Context))
	}
	return Frame{
		Markers: markers,
		Route:   ProjectRoute(p.Routes, p.SelectedRouteID, p.HoveredRouteID),
		Radius:  radiusFeature(p.Modes, p.Radius),
		Popup:   c.popupViewLocked(),
		Legend:  buildLegend(markers),
		Banner:  bannerFor(p.Modes, p.Context),
		Cursor:  cursorFor(p.Modes),
	}
}

func (c *Controller) popupViewLocked() *PopupView {
	st := c.popup.current()
	if st.Kind == PopupNone {
		return nil
	}
	b, ok := c.buildingLocked(st.ID)
	if !ok {
		return nil
	}
	v := &PopupView{
		Kind:     st.Kind,
		PointID:  b.ID,
		Name:     b.Name,
		ImageURL: b.ImageURL,
		Rating:   b.Rating,
	}
	if st.Kind == PopupDetailed && c.popup.unit != nil {
		v.Generation = c.popup.unit.Generation
		v.Actions = c.offeredLocked(b.ID)
	}
	return v
}

// offeredLocked lists the actions the detailed popup of id shows right now.
func (c *Controller) offeredLocked(id string) []PopupActionView {
	out := []PopupActionView{{Action: ActionDetails, Label: "View details"}}
	if c.props.Modes.RouteCreation {
		out = append(out, PopupActionView{
			Action:   ActionAddToRoute,
			Label:    "Add to route",
			Disabled: slices.Contains(c.props.Context.RouteCreation, id),
		})
	} else {
		out = append(out, PopupActionView{Action: ActionStartRoute, Label: "Start route from here"})
	}
	return out
}

func (c *Controller) buildingLocked(id string) (domain.Building, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Building{}, false
	}
	return c.props.Buildings[i], true
}

func (c *Controller) routeLocked(id string) (domain.Route, bool) {
	for _, r := range c.props.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Route{}, false
}

// MarkerEnter shows the hover popup of id if no popup is open.
func (c *Controller) MarkerEnter(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[id]; !ok {
		return false
	}
	return c.popup.enter(id)
}

// MarkerLeave hides the hover popup of id.
func (c *Controller) MarkerLeave(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popup.leave(id)
}

// MarkerClick opens the detailed popup of id and reports the click.
func (c *Controller) MarkerClick(id string) bool {
	c.mu.Lock()
	if _, ok := c.index[id]; !ok {
		c.mu.Unlock()
		c.logger.Warn("marker click for unknown building", "id", id)
		return false
	}
	c.openDetailedLocked(id)
	cb := c.callbacks.Load()
	c.mu.Unlock()

	if cb.OnPointClick != nil {
		cb.OnPointClick(&id)
	}
	return true
}

// RouteClick reports a click on a route line. Clicking the selected route
// asks for its details instead.
func (c *Controller) RouteClick(id string) {
	c.mu.Lock()
	r, ok := c.routeLocked(id)
	selected := ok && c.props.SelectedRouteID == id
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("route click for unknown route", "id", id)
		return
	}

	cb := c.callbacks.Load()
	switch {
	case selected && cb.OnRouteDetails != nil:
		cb.OnRouteDetails(r)
	case !selected && cb.OnRouteClick != nil:
		cb.OnRouteClick(id)
	}
}

// ClosePopup closes whatever popup is open.
func (c *Controller) ClosePopup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popup.close()
}

func (c *Controller) closePopupFromClick() {
	c.mu.Lock()
	changed := c.popup.close()
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// PopupAction runs action a of the detailed popup with generation gen. It
// reports false when the popup is gone or the action is not on offer.
func (c *Controller) PopupAction(gen uint64, a PopupAction) bool {
	c.mu.Lock()
	fn, ok := c.popup.action(gen, a)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("stale popup action", "generation", gen, "action", string(a))
		return false
	}
	var offered bool
	for _, v := range c.offeredLocked(c.popup.unit.PointID) {
		if v.Action == a && !v.Disabled {
			offered = true
		}
	}
	if !offered {
		c.mu.Unlock()
		return false
	}
	if a == ActionDetails {
		c.popup.close()
	}
	c.mu.Unlock()

	fn()
	return true
}

// openDetailedLocked opens the detailed popup of id with its actions bound to
// the current callbacks.
func (c *Controller) openDetailedLocked(id string) {
	b, _ := c.buildingLocked(id)
	cb := c.callbacks.Load()
	c.popup.open(id, map[PopupAction]func(){
		ActionDetails: func() {
			if cb.OnPointDetails != nil {
				cb.OnPointDetails(b)
			}
		},
		ActionAddToRoute: func() {
			if cb.OnAddToRoute != nil {
				cb.OnAddToRoute(id)
			}
		},
		ActionStartRoute: func() {
			if cb.OnStartRouteFrom != nil {
				cb.OnStartRouteFrom(id)
			}
		},
	})
}

func (c *Controller) handleMoveEnd(ev MoveEnd) {
	if cb := c.callbacks.Load(); cb.OnViewportChange != nil {
		cb.OnViewportChange(ev.Camera)
	}
}

// CenterOnPoint moves the camera so that building id sits in the middle of
// the visible part of the viewport at the point zoom.
func (c *Controller) CenterOnPoint(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buildingLocked(id)
	if !ok {
		c.skipLocked("missing_entity", "center on unknown building", id)
		return
	}
	c.centerLocked(b.Location, nil)
}

// CenterOnRoute frames the geometry of route id inside the visible band.
func (c *Controller) CenterOnRoute(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routeLocked(id)
	if !ok {
		c.skipLocked("missing_entity", "center on unknown route", id)
		return
	}
	bounds, ok := r.Geometry.Bounds()
	if !ok {
		metrics.CommandsSkipped.WithLabelValues("missing_geometry").Inc()
		c.logger.Info("route has no geometry", "id", id)
		return
	}
	size, ok := c.surface.Size()
	if !ok {
		return
	}
	c.beginLocked("center_on_route")
	in := c.cfg.insets(size)
	pad := c.cfg.FitPadding
	c.surface.FitBounds(bounds, FitOptions{
		Padding: Padding{
			Top:    pad + in.top,
			Right:  pad,
			Bottom: pad + in.bottom,
			Left:   pad,
		},
		MaxZoom:  c.cfg.PointZoom,
		Duration: c.cfg.FlyDuration,
	})
}

// FlyTo moves the camera to (lat, lon). A nil zoom keeps the current zoom.
func (c *Controller) FlyTo(lat, lon float64, zoom *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cam, ok := c.surface.Camera()
	if !ok {
		return
	}
	z := cam.Zoom
	if zoom != nil {
		z = *zoom
	}
	token := c.beginLocked("fly_to")
	c.flyLocked(token, domain.GeoPoint{Lat: lat, Lon: lon}, z, nil)
}

// OpenPointPopup centers on building id and opens its detailed popup. On
// touch devices the popup waits for centering, per Config.PopupSequencing.
func (c *Controller) OpenPointPopup(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buildingLocked(id)
	if !ok {
		c.skipLocked("missing_entity", "open popup of unknown building", id)
		return
	}

	if !c.props.Touch {
		c.centerLocked(b.Location, nil)
		c.openDetailedLocked(id)
		return
	}

	switch c.cfg.PopupSequencing {
	case SequenceFixedDelay:
		c.centerLocked(b.Location, nil)
		if c.delay != nil {
			c.delay.Stop()
		}
		c.delay = c.clock.AfterFunc(c.cfg.TouchPopupDelay, func() {
			c.mu.Lock()
			c.delay = nil
			_, ok := c.index[id]
			if ok {
				c.openDetailedLocked(id)
			}
			c.mu.Unlock()
			if ok {
				c.notify()
			}
		})
	default:
		c.centerLocked(b.Location, func(domain.Camera) func() {
			if _, ok := c.index[id]; !ok {
				return nil
			}
			c.openDetailedLocked(id)
			return c.notify
		})
	}
}

func (c *Controller) skipLocked(reason, msg, id string) {
	metrics.CommandsSkipped.WithLabelValues(reason).Inc()
	c.logger.Warn(msg, "id", id)
}

// beginLocked starts a new camera command. Continuations of older commands
// are cancelled and will not run.
func (c *Controller) beginLocked(kind string) uint64 {
	c.cancelPendingLocked()
	c.token++
	metrics.CameraCommands.WithLabelValues(kind).Inc()
	return c.token
}

func (c *Controller) cancelPendingLocked() {
	if c.pending == nil {
		return
	}
	c.pending.off()
	c.pending = nil
}

// centerLocked centers the visible band on p. When the zoom gap is small the
// offset is computed at the current camera; otherwise the camera first flies
// to p and the offset is applied once that move settles at the target zoom.
func (c *Controller) centerLocked(p domain.GeoPoint, then settleFunc) {
	size, ok := c.surface.Size()
	if !ok {
		return
	}
	cam, _ := c.surface.Camera()
	token := c.beginLocked("center_on_point")
	zoom := c.cfg.PointZoom

	in := c.cfg.insets(size)
	if in.zero() {
		c.flyLocked(token, p, zoom, then)
		return
	}
	delta := in.delta(size)

	if math.Abs(cam.Zoom-zoom) <= c.cfg.ZoomGapThreshold {
		c.flyLocked(token, c.offsetLocked(p, delta, zoom), zoom, then)
		return
	}
	c.flyLocked(token, p, zoom, func(domain.Camera) func() {
		c.flyLocked(token, c.offsetLocked(p, delta, zoom), zoom, then)
		return nil
	})
}

// offsetLocked returns the point that lies delta pixels below p once the
// camera is at zoom. The projection runs at the current camera, so delta is
// rescaled from target-zoom pixels to current-zoom pixels.
func (c *Controller) offsetLocked(p domain.GeoPoint, delta, zoom float64) domain.GeoPoint {
	cam, ok := c.surface.Camera()
	if !ok {
		return p
	}
	sp, ok := c.surface.Project(p)
	if !ok {
		return p
	}
	sp.Y += delta * math.Exp2(cam.Zoom-zoom)
	out, ok := c.surface.Unproject(sp)
	if !ok {
		return p
	}
	return out
}

// flyLocked issues a fly command. When then is set, a one-shot move-end
// listener is registered before the command goes out and runs then once
// this command settles, unless a newer command was issued in between.
func (c *Controller) flyLocked(token uint64, center domain.GeoPoint, zoom float64, then settleFunc) {
	var p *pendingMove
	if then != nil {
		p = &pendingMove{token: token, fn: then}
		c.armLocked(p)
		c.pending = p
	}
	cmd, ok := c.surface.FlyTo(FlyOptions{Center: center, Zoom: zoom, Duration: c.cfg.FlyDuration})
	if !ok {
		c.cancelPendingLocked()
		return
	}
	if p != nil {
		p.cmd = cmd
	}
}

func (c *Controller) armLocked(p *pendingMove) {
	p.off = c.surface.OnceMoveEnd(func(ev MoveEnd) { c.settle(p, ev) })
}

func (c *Controller) settle(p *pendingMove, ev MoveEnd) {
	c.mu.Lock()
	if c.pending != p || p.token != c.token {
		c.mu.Unlock()
		return
	}
	if ev.Command != p.cmd {
		// Another move ended first; keep waiting for ours.
		c.armLocked(p)
		c.mu.Unlock()
		return
	}
	c.pending = nil
	after := p.fn(ev.Camera)
	c.mu.Unlock()

	if after != nil {
		after()
	}
}
