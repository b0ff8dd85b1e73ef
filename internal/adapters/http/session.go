package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/utils"
	"github.com/gofiber/websocket/v2"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/archmap/internal/adapters/mercator"
	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/mapview"
	"github.com/samirrijal/archmap/internal/core/ports"
	"github.com/samirrijal/archmap/internal/pkg/metrics"
	"github.com/samirrijal/archmap/internal/pkg/telemetry"
)

var activeSessions atomic.Int64

// Client message types.
const (
	MsgProps       = "props"
	MsgResize      = "resize"
	MsgCamera      = "camera"  // the user panned or zoomed
	MsgMoveEnd     = "moveend" // a camera command finished animating
	MsgClick       = "click"   // click on empty map space
	MsgMarkerEnter = "marker_enter"
	MsgMarkerLeave = "marker_leave"
	MsgMarkerClick = "marker_click"
	MsgRouteClick  = "route_click"
	MsgPopupClose  = "popup_close"
	MsgPopupAction = "popup_action"
	MsgCommand     = "command"
)

// Server message types.
const (
	MsgSession       = "session"
	MsgFrame         = "frame"
	MsgCameraCommand = "camera_command"
	MsgCallback      = "callback"
	MsgError         = "error"
)

// Imperative commands a client can ask for.
const (
	CmdCenterOnPoint  = "center_on_point"
	CmdCenterOnRoute  = "center_on_route"
	CmdOpenPointPopup = "open_point_popup"
	CmdFlyTo          = "fly_to"
)

// radiusMarkerLimit caps the markers drawn inside a radius filter. It matches
// the cap enforced by the building service.
const radiusMarkerLimit = 200

// ClientMessage is one message from the browser. Which fields are read
// depends on Type.
type ClientMessage struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"` // command name
	Lat        float64        `json:"lat,omitempty"`
	Lon        float64        `json:"lon,omitempty"`
	Zoom       *float64       `json:"zoom,omitempty"`
	Width      float64        `json:"width,omitempty"`
	Height     float64        `json:"height,omitempty"`
	Command    uint64         `json:"command,omitempty"`
	Camera     *domain.Camera `json:"camera,omitempty"`
	Generation uint64         `json:"generation,omitempty"`
	Action     string         `json:"action,omitempty"`
	Props      *SessionProps  `json:"props,omitempty"`
}

// SessionProps is the interaction state the browser owns. The session fills
// in the building and route collections itself.
type SessionProps struct {
	Context         mapview.Context `json:"context"`
	Modes           mapview.Modes   `json:"modes"`
	Radius          mapview.Radius  `json:"radius"`
	SelectedRouteID string          `json:"selected_route_id,omitempty"`
	HoveredRouteID  string          `json:"hovered_route_id,omitempty"`
	Touch           bool            `json:"touch"`
	Reload          bool            `json:"reload,omitempty"` // refetch the catalog
}

// Callback names as sent to the browser.
const (
	CbPointClick     = "point_click"
	CbRouteClick     = "route_click"
	CbAddToRoute     = "add_to_route"
	CbStartRouteFrom = "start_route_from"
	CbPointDetails   = "point_details"
	CbRouteDetails   = "route_details"
	CbMapClick       = "map_click"
	CbViewportChange = "viewport_change"
)

// ServerMessage is one message to the browser.
type ServerMessage struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id,omitempty"`
	Frame      *mapview.Frame    `json:"frame,omitempty"`
	Command    *mercator.Command `json:"command,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Callback   string            `json:"callback,omitempty"`
	ID         *string           `json:"id,omitempty"` // nil for a deselect
	Location   *domain.GeoPoint  `json:"location,omitempty"`
	Camera     *domain.Camera    `json:"camera,omitempty"`
	Building   *domain.Building  `json:"building,omitempty"`
	Route      *domain.Route     `json:"route,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// SessionOptions describe the browser's map when the session starts.
type SessionOptions struct {
	Size   mapview.Size
	Camera domain.Camera
}

// MapSession hosts the map view controller of one connected browser. The
// browser renders frames and animates camera commands; every interaction is
// routed through the controller here.
type MapSession struct {
	id     string
	deps   *Dependencies
	logger *slog.Logger
	send   func(ServerMessage) error
	engine *mercator.Engine
	ctrl   *mapview.Controller

	mu        sync.Mutex
	props     SessionProps
	buildings []domain.Building
	routes    []domain.Route
	loaded    bool
}

// NewMapSession creates a session and mounts its controller. send is called
// from whichever goroutine produces a message and must be safe for
// concurrent use.
func NewMapSession(deps *Dependencies, id string, opts SessionOptions, send func(ServerMessage) error) *MapSession {
	s := &MapSession{
		id:     id,
		deps:   deps,
		logger: deps.logger().With("session_id", id),
		send:   send,
		props:  SessionProps{Modes: mapview.Modes{Radius: mapview.RadiusNone}},
	}

	maxZoom := deps.MaxZoom
	if maxZoom <= 0 {
		maxZoom = 22
	}
	s.engine = mercator.New(deps.Map.Clock, opts.Size, opts.Camera,
		mercator.WithRemoteCompletion(),
		mercator.WithZoomRange(0, maxZoom),
		mercator.WithSink(s.forwardCommand),
	)
	s.ctrl = mapview.New(mapview.NewSurface(), deps.Map, s.logger)
	s.ctrl.OnChange(s.pushFrame)
	s.ctrl.Mount(s.engine)

	activeSessions.Add(1)
	metrics.ActiveMapSessions.Inc()
	return s
}

// ID returns the session id.
func (s *MapSession) ID() string { return s.id }

// Start loads the catalog, renders the first frame and announces the session.
func (s *MapSession) Start(ctx context.Context) error {
	if err := s.send(ServerMessage{Type: MsgSession, SessionID: s.id}); err != nil {
		return err
	}
	return s.render(ctx, true)
}

// Close unmounts the controller. Messages after Close are ignored.
func (s *MapSession) Close() {
	s.ctrl.Unmount()
	activeSessions.Add(-1)
	metrics.ActiveMapSessions.Dec()
}

// Handle decodes and applies one client message. Protocol errors are
// reported to the client and do not end the session.
func (s *MapSession) Handle(ctx context.Context, raw []byte) {
	var m ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		s.sendError("invalid JSON")
		return
	}
	if err := s.apply(ctx, m); err != nil {
		s.sendError(err.Error())
	}
}

func (s *MapSession) apply(ctx context.Context, m ClientMessage) error {
	switch m.Type {
	case MsgProps:
		if m.Props == nil {
			return fmt.Errorf("props message without props")
		}
		s.mu.Lock()
		s.props = *m.Props
		s.mu.Unlock()
		return s.render(ctx, m.Props.Reload)

	case MsgResize:
		if m.Width <= 0 || m.Height <= 0 {
			return fmt.Errorf("resize needs positive width and height")
		}
		s.engine.SetSize(mapview.Size{Width: m.Width, Height: m.Height})
		return nil

	case MsgCamera:
		if m.Camera == nil {
			return fmt.Errorf("camera message without camera")
		}
		s.engine.UserMove(*m.Camera)
		return nil

	case MsgMoveEnd:
		if m.Camera == nil {
			return fmt.Errorf("moveend message without camera")
		}
		if !s.engine.Complete(m.Command, *m.Camera) {
			s.logger.Debug("stale moveend", "command", m.Command)
		}
		return nil

	case MsgClick:
		s.engine.Click(domain.GeoPoint{Lat: m.Lat, Lon: m.Lon})
		return nil

	case MsgMarkerEnter:
		if s.ctrl.MarkerEnter(m.ID) {
			s.pushFrame()
		}
		return nil

	case MsgMarkerLeave:
		if s.ctrl.MarkerLeave(m.ID) {
			s.pushFrame()
		}
		return nil

	case MsgMarkerClick:
		if s.ctrl.MarkerClick(m.ID) {
			s.pushFrame()
		}
		return nil

	case MsgRouteClick:
		s.ctrl.RouteClick(m.ID)
		return nil

	case MsgPopupClose:
		if s.ctrl.ClosePopup() {
			s.pushFrame()
		}
		return nil

	case MsgPopupAction:
		if s.ctrl.PopupAction(m.Generation, mapview.PopupAction(m.Action)) {
			s.pushFrame()
		}
		return nil

	case MsgCommand:
		return s.command(ctx, m)

	default:
		return fmt.Errorf("unknown message type: %s", m.Type)
	}
}

// command runs one imperative command inside a trace span.
func (s *MapSession) command(ctx context.Context, m ClientMessage) error {
	_, span := telemetry.Tracer().Start(ctx, "mapview."+m.Name)
	defer span.End()
	span.SetAttributes(
		telemetry.AttrSessionID.String(s.id),
		telemetry.AttrCommand.String(m.Name),
		telemetry.AttrTarget.String(m.ID),
	)

	switch m.Name {
	case CmdCenterOnPoint:
		s.ctrl.CenterOnPoint(m.ID)
	case CmdCenterOnRoute:
		s.ctrl.CenterOnRoute(m.ID)
	case CmdOpenPointPopup:
		s.ctrl.OpenPointPopup(m.ID)
		s.pushFrame()
	case CmdFlyTo:
		if !(domain.GeoPoint{Lat: m.Lat, Lon: m.Lon}).Valid() {
			err := fmt.Errorf("fly_to target out of range")
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		s.ctrl.FlyTo(m.Lat, m.Lon, m.Zoom)
	default:
		err := fmt.Errorf("unknown command: %s", m.Name)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// render feeds the current props, with the catalog, to the controller and
// pushes the resulting frame.
func (s *MapSession) render(ctx context.Context, reload bool) error {
	s.mu.Lock()
	props := s.props
	needLoad := reload || !s.loaded
	s.mu.Unlock()

	buildings, routes, err := s.catalog(ctx, props, needLoad)
	if err != nil {
		return err
	}

	frame := s.ctrl.Render(mapview.Props{
		Buildings:       buildings,
		Routes:          routes,
		Context:         props.Context,
		Modes:           props.Modes,
		Radius:          props.Radius,
		SelectedRouteID: props.SelectedRouteID,
		HoveredRouteID:  props.HoveredRouteID,
		Touch:           props.Touch,
		Callbacks:       s.callbacks(),
	})
	return s.send(ServerMessage{Type: MsgFrame, Frame: &frame})
}

// catalog returns the buildings and routes to draw. With a radius filter in
// effect only the buildings inside the circle are drawn.
func (s *MapSession) catalog(ctx context.Context, props SessionProps, reload bool) ([]domain.Building, []domain.Route, error) {
	if reload {
		buildings, err := s.deps.Buildings.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load buildings: %w", err)
		}
		routes, err := s.deps.Routes.List(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load routes: %w", err)
		}
		s.mu.Lock()
		s.buildings, s.routes, s.loaded = buildings, routes, true
		s.mu.Unlock()
	}

	s.mu.Lock()
	buildings, routes := s.buildings, s.routes
	s.mu.Unlock()

	r := props.Radius
	if props.Modes.Radius != mapview.RadiusNone && props.Modes.Radius != "" && r.Center != nil && r.Km > 0 {
		nearby, err := s.deps.Buildings.FindNearby(ctx, r.Center.Lat, r.Center.Lon, r.Km, radiusMarkerLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("radius filter: %w", err)
		}
		if len(nearby) >= radiusMarkerLimit {
			s.logger.Warn("radius filter truncated", "limit", radiusMarkerLimit, "radius_km", r.Km)
		}
		buildings = nearby
	}
	return buildings, routes, nil
}

// callbacks forwards every controller callback to the browser. Viewport
// changes and captured map clicks are also published as session events.
func (s *MapSession) callbacks() mapview.Callbacks {
	return mapview.Callbacks{
		OnPointClick: func(id *string) {
			s.emit(ServerMessage{Callback: CbPointClick, ID: id})
		},
		OnRouteClick: func(id string) {
			s.emit(ServerMessage{Callback: CbRouteClick, ID: &id})
		},
		OnAddToRoute: func(id string) {
			s.emit(ServerMessage{Callback: CbAddToRoute, ID: &id})
		},
		OnStartRouteFrom: func(id string) {
			s.emit(ServerMessage{Callback: CbStartRouteFrom, ID: &id})
		},
		OnPointDetails: func(b domain.Building) {
			s.emit(ServerMessage{Callback: CbPointDetails, ID: &b.ID, Building: &b})
		},
		OnRouteDetails: func(r domain.Route) {
			s.emit(ServerMessage{Callback: CbRouteDetails, ID: &r.ID, Route: &r})
		},
		OnMapClick: func(lat, lon float64) {
			p := domain.GeoPoint{Lat: lat, Lon: lon}
			s.emit(ServerMessage{Callback: CbMapClick, Location: &p})
			s.publishMapClick(p)
		},
		OnViewportChange: func(cam domain.Camera) {
			s.emit(ServerMessage{Callback: CbViewportChange, Camera: &cam})
			s.publishViewport(cam)
		},
	}
}

func (s *MapSession) emit(m ServerMessage) {
	m.Type = MsgCallback
	if err := s.send(m); err != nil {
		s.logger.Debug("send callback failed", "callback", m.Callback, "error", err)
	}
}

func (s *MapSession) publishMapClick(p domain.GeoPoint) {
	if s.deps.Events == nil {
		return
	}
	s.mu.Lock()
	mode := "radius"
	if s.props.Modes.AddEntity {
		mode = "add_entity"
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := &ports.MapClickEvent{SessionID: s.id, Location: p, Mode: mode}
	if err := s.deps.Events.PublishMapClick(ctx, ev); err != nil {
		s.logger.Warn("publish map click failed", "error", err)
	}
}

func (s *MapSession) publishViewport(cam domain.Camera) {
	if s.deps.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.deps.Events.PublishViewportChange(ctx, &ports.ViewportEvent{SessionID: s.id, Camera: cam}); err != nil {
		s.logger.Warn("publish viewport failed", "error", err)
	}
}

// forwardCommand is the engine sink: the browser animates the move and
// answers with a moveend message.
func (s *MapSession) forwardCommand(cmd mercator.Command) {
	err := s.send(ServerMessage{
		Type:       MsgCameraCommand,
		Command:    &cmd,
		DurationMS: cmd.Duration.Milliseconds(),
	})
	if err != nil {
		s.logger.Debug("send camera command failed", "command", cmd.ID, "error", err)
	}
}

func (s *MapSession) pushFrame() {
	frame := s.ctrl.Frame()
	if err := s.send(ServerMessage{Type: MsgFrame, Frame: &frame}); err != nil {
		s.logger.Debug("send frame failed", "error", err)
	}
}

func (s *MapSession) sendError(msg string) {
	_ = s.send(ServerMessage{Type: MsgError, Error: msg})
}

// MapSessionHandler serves /ws/map. The browser passes its viewport size and
// starting camera as query parameters:
//
//	/ws/map?width=1280&height=800&lat=52.52&lon=13.40&zoom=13
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id, _ := c.Locals("requestid").(string)
		if id == "" {
			id = utils.UUIDv4()
		}
		opts := SessionOptions{
			Size: mapview.Size{
				Width:  queryFloat(c, "width", 1280),
				Height: queryFloat(c, "height", 800),
			},
			Camera: domain.Camera{
				Center: domain.GeoPoint{Lat: queryFloat(c, "lat", 0), Lon: queryFloat(c, "lon", 0)},
				Zoom:   queryFloat(c, "zoom", 2),
			},
		}

		var mu sync.Mutex
		send := func(m ServerMessage) error {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		session := NewMapSession(deps, id, opts, send)
		defer session.Close()
		log := session.logger
		log.Info("map session connected", "remote", c.RemoteAddr().String())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := session.Start(ctx); err != nil {
			log.Error("map session start failed", "error", err)
			_ = send(ServerMessage{Type: MsgError, Error: "failed to load map"})
			return
		}

		done := make(chan struct{})
		defer close(done)
		go keepAlive(c, &mu, done)

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}
			session.Handle(ctx, raw)
		}
		log.Info("map session disconnected")
	}
}

// keepAlive pings the client every 30s until done is closed or a write fails.
func keepAlive(c *websocket.Conn, mu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mu.Lock()
			err := c.WriteMessage(websocket.PingMessage, nil)
			mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func queryFloat(c *websocket.Conn, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
