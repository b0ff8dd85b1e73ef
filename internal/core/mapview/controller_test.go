package mapview_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/paulmach/orb"

	"github.com/samirrijal/archmap/internal/adapters/mercator"
	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/mapview"
	"github.com/samirrijal/archmap/internal/pkg/logging"
)

var (
	wide   = mapview.Size{Width: 1280, Height: 800}
	narrow = mapview.Size{Width: 390, Height: 760}
)

func testBuildings() []domain.Building {
	return []domain.Building{
		{ID: "a", Name: "Neue Nationalgalerie", Location: domain.GeoPoint{Lat: 52.5, Lon: 13.4}, Rating: 4.7},
		{ID: "b", Name: "Philharmonie", Location: domain.GeoPoint{Lat: 52.51, Lon: 13.37}, Rating: 4.8},
		{ID: "c", Name: "Jewish Museum", Location: domain.GeoPoint{Lat: 52.502, Lon: 13.395}, Rating: 4.6},
	}
}

type fixture struct {
	clk    *clock.Mock
	engine *mercator.Engine
	ctrl   *mapview.Controller
	cfg    mapview.Config
}

func newFixture(t *testing.T, size mapview.Size, zoom float64, mutate ...func(*mapview.Config)) *fixture {
	t.Helper()
	clk := clock.NewMock()
	cfg := mapview.DefaultConfig()
	cfg.Clock = clk
	for _, m := range mutate {
		m(&cfg)
	}
	engine := mercator.New(clk, size, domain.Camera{Center: domain.GeoPoint{Lat: 52.52, Lon: 13.405}, Zoom: zoom})
	ctrl := mapview.New(mapview.NewSurface(), cfg, logging.Discard())
	ctrl.Mount(engine)
	return &fixture{clk: clk, engine: engine, ctrl: ctrl, cfg: cfg}
}

func (f *fixture) render(p mapview.Props) mapview.Frame {
	if p.Buildings == nil {
		p.Buildings = testBuildings()
	}
	if p.Routes == nil {
		p.Routes = testRoutes()
	}
	return f.ctrl.Render(p)
}

// screenY returns where p currently sits on screen.
func (f *fixture) screenY(p domain.GeoPoint) float64 {
	return f.engine.Project(p).Y
}

func nearCamera(a, b domain.Camera) bool {
	const eps = 1e-9
	return math.Abs(a.Center.Lat-b.Center.Lat) <= eps &&
		math.Abs(a.Center.Lon-b.Center.Lon) <= eps &&
		math.Abs(a.Zoom-b.Zoom) <= eps
}

// --- Render ---

func TestRender_Markers(t *testing.T) {
	f := newFixture(t, wide, 12)

	// Scenario: nothing selected, "a" hovered.
	frame := f.render(mapview.Props{Context: mapview.Context{HoveredID: "a"}})
	if len(frame.Markers) != 3 {
		t.Fatalf("expected 3 markers, got %d", len(frame.Markers))
	}
	if frame.Markers[0].State != mapview.MarkerHovered {
		t.Errorf("expected a hovered, got %s", frame.Markers[0].State)
	}

	frame = f.render(mapview.Props{Context: mapview.Context{
		RouteCreation: []string{"a", "b"},
		ViewedRoute:   []string{"a"},
	}})
	if frame.Markers[0].State != mapview.MarkerInRouteCreation || frame.Markers[0].Badge != 1 {
		t.Errorf("expected a in route creation with badge 1, got %+v", frame.Markers[0])
	}
	if frame.Markers[1].Badge != 2 {
		t.Errorf("expected b badge 2, got %d", frame.Markers[1].Badge)
	}
	if frame.Legend[4].State != mapview.MarkerInRouteCreation || frame.Legend[4].Count != 2 {
		t.Errorf("unexpected legend entry %+v", frame.Legend[4])
	}
}

func TestRender_ModesChrome(t *testing.T) {
	f := newFixture(t, wide, 12)
	center := domain.GeoPoint{Lat: 52.5, Lon: 13.4}

	frame := f.render(mapview.Props{
		Modes:  mapview.Modes{Radius: mapview.RadiusMap},
		Radius: mapview.Radius{Center: &center, Km: 5},
	})
	if frame.Cursor != mapview.CursorCrosshair {
		t.Errorf("expected crosshair, got %s", frame.Cursor)
	}
	if frame.Banner == "" {
		t.Error("expected a mode banner")
	}
	if frame.Radius == nil {
		t.Fatal("expected a radius circle")
	}
	poly, ok := frame.Radius.Geometry.(orb.Polygon)
	if !ok || len(poly) != 1 || len(poly[0]) != 65 {
		t.Errorf("expected a 65-vertex polygon, got %T", frame.Radius.Geometry)
	}

	frame = f.render(mapview.Props{Radius: mapview.Radius{Center: &center, Km: 5}})
	if frame.Radius != nil {
		t.Error("radius circle drawn with radius mode off")
	}
	if frame.Cursor != mapview.CursorDefault || frame.Banner != "" {
		t.Errorf("unexpected chrome %q %q", frame.Cursor, frame.Banner)
	}
}

func TestRender_RouteLayer(t *testing.T) {
	f := newFixture(t, wide, 12)
	frame := f.render(mapview.Props{SelectedRouteID: "r2"})
	if frame.Route == nil || frame.Route.Features[0].ID != "r2" {
		t.Fatalf("expected route layer for r2, got %+v", frame.Route)
	}
}

// --- Popups ---

func TestPopup_Transitions(t *testing.T) {
	f := newFixture(t, wide, 12)
	f.render(mapview.Props{})

	f.ctrl.MarkerEnter("a")
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupHover || p.ID != "a" {
		t.Fatalf("expected hover(a), got %+v", p)
	}
	f.ctrl.MarkerEnter("b")
	if p := f.ctrl.Popup(); p.ID != "a" {
		t.Errorf("enter only opens from none, got %+v", p)
	}
	f.ctrl.MarkerLeave("b")
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupHover {
		t.Errorf("leave of another id should not close, got %+v", p)
	}
	f.ctrl.MarkerClick("b")
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupDetailed || p.ID != "b" {
		t.Fatalf("expected detailed(b), got %+v", p)
	}
	f.ctrl.MarkerLeave("b")
	f.ctrl.MarkerEnter("c")
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupDetailed || p.ID != "b" {
		t.Errorf("detailed popup should survive hover events, got %+v", p)
	}
	f.ctrl.ClosePopup()
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupNone {
		t.Errorf("expected none, got %+v", p)
	}
}

func TestPopup_MutualExclusion(t *testing.T) {
	f := newFixture(t, wide, 12)
	frame := f.render(mapview.Props{})
	ids := []string{"a", "b", "c"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(5) {
		case 0:
			f.ctrl.MarkerEnter(id)
		case 1:
			f.ctrl.MarkerLeave(id)
		case 2:
			f.ctrl.MarkerClick(id)
		case 3:
			f.ctrl.ClosePopup()
		case 4:
			f.engine.Click(domain.GeoPoint{Lat: 52.5, Lon: 13.4})
		}

		p := f.ctrl.Popup()
		frame = f.ctrl.Frame()
		switch p.Kind {
		case mapview.PopupNone:
			if frame.Popup != nil {
				t.Fatalf("step %d: frame shows %+v with no popup open", i, frame.Popup)
			}
		case mapview.PopupHover, mapview.PopupDetailed:
			if frame.Popup == nil || frame.Popup.Kind != p.Kind || frame.Popup.PointID != p.ID {
				t.Fatalf("step %d: frame popup %+v does not match %+v", i, frame.Popup, p)
			}
		default:
			t.Fatalf("step %d: unknown popup kind %q", i, p.Kind)
		}
	}
}

func TestPopup_ActionsBoundToGeneration(t *testing.T) {
	f := newFixture(t, wide, 12)
	var started, added []string
	var details []domain.Building
	cb := mapview.Callbacks{
		OnStartRouteFrom: func(id string) { started = append(started, id) },
		OnAddToRoute:     func(id string) { added = append(added, id) },
		OnPointDetails:   func(b domain.Building) { details = append(details, b) },
	}
	f.render(mapview.Props{Callbacks: cb})

	f.ctrl.MarkerClick("a")
	first := f.ctrl.Frame().Popup
	if first == nil || len(first.Actions) != 2 || first.Actions[1].Action != mapview.ActionStartRoute {
		t.Fatalf("expected details and start route, got %+v", first)
	}
	if !f.ctrl.PopupAction(first.Generation, mapview.ActionStartRoute) {
		t.Fatal("expected start route to run")
	}
	if len(started) != 1 || started[0] != "a" {
		t.Errorf("unexpected start route calls %v", started)
	}
	if f.ctrl.PopupAction(first.Generation, mapview.ActionAddToRoute) {
		t.Error("add to route is not offered outside route creation")
	}

	f.ctrl.ClosePopup()
	f.ctrl.MarkerClick("b")
	if f.ctrl.PopupAction(first.Generation, mapview.ActionStartRoute) {
		t.Error("action on a closed popup ran")
	}

	second := f.ctrl.Frame().Popup
	if !f.ctrl.PopupAction(second.Generation, mapview.ActionDetails) {
		t.Fatal("expected details to run")
	}
	if len(details) != 1 || details[0].ID != "b" {
		t.Errorf("unexpected details calls %v", details)
	}
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupNone {
		t.Errorf("details should close the popup, got %+v", p)
	}
}

func TestPopup_AddToRouteDisabledForMembers(t *testing.T) {
	f := newFixture(t, wide, 12)
	var added []string
	props := mapview.Props{
		Modes:     mapview.Modes{Radius: mapview.RadiusNone, RouteCreation: true},
		Context:   mapview.Context{RouteCreation: []string{"a"}},
		Callbacks: mapview.Callbacks{OnAddToRoute: func(id string) { added = append(added, id) }},
	}
	f.render(props)

	f.ctrl.MarkerClick("a")
	v := f.ctrl.Frame().Popup
	if len(v.Actions) != 2 || v.Actions[1].Action != mapview.ActionAddToRoute || !v.Actions[1].Disabled {
		t.Fatalf("expected disabled add to route, got %+v", v.Actions)
	}
	if f.ctrl.PopupAction(v.Generation, mapview.ActionAddToRoute) {
		t.Error("disabled action ran")
	}

	f.ctrl.MarkerClick("b")
	v = f.ctrl.Frame().Popup
	if v.Actions[1].Disabled {
		t.Error("b is not a member yet")
	}
	f.ctrl.PopupAction(v.Generation, mapview.ActionAddToRoute)
	if len(added) != 1 || added[0] != "b" {
		t.Errorf("unexpected add calls %v", added)
	}
}

func TestPopup_ClosedWhenBuildingDisappears(t *testing.T) {
	f := newFixture(t, wide, 12)
	f.render(mapview.Props{})
	f.ctrl.MarkerClick("c")

	frame := f.render(mapview.Props{Buildings: testBuildings()[:2]})
	if frame.Popup != nil {
		t.Errorf("expected popup closed, got %+v", frame.Popup)
	}
}

func TestMarkerClick_ReportsSelection(t *testing.T) {
	f := newFixture(t, wide, 12)
	var got []*string
	f.render(mapview.Props{Callbacks: mapview.Callbacks{OnPointClick: func(id *string) { got = append(got, id) }}})

	f.ctrl.MarkerClick("b")
	if len(got) != 1 || got[0] == nil || *got[0] != "b" {
		t.Fatalf("expected click on b, got %v", got)
	}
	if f.ctrl.MarkerClick("zzz") {
		t.Error("click on unknown marker accepted")
	}
}

func TestRouteClick(t *testing.T) {
	f := newFixture(t, wide, 12)
	var clicked []string
	var details []domain.Route
	f.render(mapview.Props{
		SelectedRouteID: "r1",
		Callbacks: mapview.Callbacks{
			OnRouteClick:   func(id string) { clicked = append(clicked, id) },
			OnRouteDetails: func(r domain.Route) { details = append(details, r) },
		},
	})

	f.ctrl.RouteClick("r2")
	f.ctrl.RouteClick("r1")
	if len(clicked) != 1 || clicked[0] != "r2" {
		t.Errorf("unexpected route clicks %v", clicked)
	}
	if len(details) != 1 || details[0].ID != "r1" {
		t.Errorf("unexpected route details %v", details)
	}
}

// --- Centering ---

func TestCenterOnPoint_NarrowLandsInVisibleBand(t *testing.T) {
	for _, startZoom := range []float64{17, 16, 15.5, 18, 10} {
		f := newFixture(t, narrow, startZoom)
		f.render(mapview.Props{})

		f.ctrl.CenterOnPoint("a")
		f.clk.Add(5 * time.Second)

		top := f.cfg.HeaderHeight
		bottom := narrow.Height * (1 - f.cfg.BottomPanelFraction)
		want := (top + bottom) / 2
		got := f.screenY(domain.GeoPoint{Lat: 52.5, Lon: 13.4})
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("start zoom %v: expected y=%f, got %f", startZoom, want, got)
		}
		if z := f.engine.Camera().Zoom; z != f.cfg.PointZoom {
			t.Errorf("start zoom %v: expected zoom %v, got %v", startZoom, f.cfg.PointZoom, z)
		}
	}
}

func TestCenterOnPoint_WideCentersDirectly(t *testing.T) {
	f := newFixture(t, wide, 10)
	f.render(mapview.Props{})

	f.ctrl.CenterOnPoint("b")
	f.clk.Add(time.Second)

	cam := f.engine.Camera()
	if cam.Center != (domain.GeoPoint{Lat: 52.51, Lon: 13.37}) {
		t.Errorf("expected camera on b, got %+v", cam.Center)
	}
	if f.engine.Busy() {
		t.Error("wide centering should take a single move")
	}
}

func TestCenterOnPoint_LargeZoomGapTakesTwoMoves(t *testing.T) {
	f := newFixture(t, narrow, 10)
	var moves []domain.Camera
	f.render(mapview.Props{Callbacks: mapview.Callbacks{
		OnViewportChange: func(cam domain.Camera) { moves = append(moves, cam) },
	}})

	f.ctrl.CenterOnPoint("a")
	f.clk.Add(time.Second)
	if len(moves) != 1 || moves[0].Center != (domain.GeoPoint{Lat: 52.5, Lon: 13.4}) {
		t.Fatalf("expected first move straight to the point, got %+v", moves)
	}
	if !f.engine.Busy() {
		t.Fatal("expected corrective move in flight")
	}
	f.clk.Add(time.Second)
	if len(moves) != 2 {
		t.Fatalf("expected 2 settled moves, got %d", len(moves))
	}
	if moves[1].Center.Lat >= 52.5 {
		t.Errorf("corrected center should sit south of the point, got %+v", moves[1].Center)
	}
	if _, _, once := f.engine.Listeners(); once != 0 {
		t.Errorf("expected no one-shot listeners left, got %d", once)
	}
}

func TestCenterOnPoint_Idempotent(t *testing.T) {
	for _, settle := range []bool{true, false} {
		for _, startZoom := range []float64{10, 16} {
			checkCenterIdempotent(t, settle, startZoom)
		}
	}
}

func checkCenterIdempotent(t *testing.T, settle bool, startZoom float64) {
	t.Helper()
	f := newFixture(t, narrow, startZoom)
	f.render(mapview.Props{})

	f.ctrl.CenterOnPoint("a")
	if settle {
		f.clk.Add(5 * time.Second)
	}
	first := f.engine.Camera()
	f.ctrl.CenterOnPoint("a")
	f.clk.Add(5 * time.Second)
	second := f.engine.Camera()

	f.ctrl.CenterOnPoint("a")
	f.clk.Add(5 * time.Second)
	third := f.engine.Camera()

	if settle && !nearCamera(first, second) {
		t.Errorf("start zoom %v: second call moved the camera: %+v -> %+v", startZoom, first, second)
	}
	if !nearCamera(second, third) {
		t.Errorf("settle=%v start zoom %v: repeated call moved the camera: %+v -> %+v", settle, startZoom, second, third)
	}
}

func TestCenterOnPoint_NewCommandCancelsCorrection(t *testing.T) {
	f := newFixture(t, narrow, 10)
	f.render(mapview.Props{})

	f.ctrl.CenterOnPoint("a")
	f.clk.Add(500 * time.Millisecond)
	zoom := 12.0
	f.ctrl.FlyTo(52.45, 13.30, &zoom)
	f.clk.Add(5 * time.Second)

	want := domain.Camera{Center: domain.GeoPoint{Lat: 52.45, Lon: 13.30}, Zoom: 12}
	if cam := f.engine.Camera(); cam != want {
		t.Errorf("expected %+v, got %+v", want, cam)
	}
	if _, _, once := f.engine.Listeners(); once != 0 {
		t.Errorf("stale one-shot listener left behind: %d", once)
	}
}

func TestCenterOnRoute_LastCommandWins(t *testing.T) {
	f := newFixture(t, wide, 10)
	f.render(mapview.Props{})

	f.ctrl.CenterOnRoute("r1")
	f.clk.Add(300 * time.Millisecond)
	f.ctrl.CenterOnRoute("r2")
	f.clk.Add(5 * time.Second)

	pad := mapview.Padding{Top: f.cfg.FitPadding, Right: f.cfg.FitPadding, Bottom: f.cfg.FitPadding, Left: f.cfg.FitPadding}
	bounds := func(id string) domain.Bounds {
		for _, r := range testRoutes() {
			if r.ID == id {
				b, _ := r.Geometry.Bounds()
				return b
			}
		}
		t.Fatalf("no route %s", id)
		return domain.Bounds{}
	}
	want := mercator.FitCamera(bounds("r2"), wide, pad, 0, f.cfg.PointZoom)
	other := mercator.FitCamera(bounds("r1"), wide, pad, 0, f.cfg.PointZoom)

	got := f.engine.Camera()
	if !nearCamera(got, want) {
		t.Errorf("expected camera framing r2 %+v, got %+v", want, got)
	}
	if nearCamera(got, other) {
		t.Error("camera frames r1")
	}
	for _, p := range testRoutes()[1].Geometry.Coordinates {
		sp := f.engine.Project(p)
		if sp.X < 0 || sp.X > wide.Width || sp.Y < 0 || sp.Y > wide.Height {
			t.Errorf("r2 vertex %+v off screen at %+v", p, sp)
		}
	}
}

func TestCenterOnRoute_NarrowKeepsRouteAbovePanel(t *testing.T) {
	f := newFixture(t, narrow, 10)
	f.render(mapview.Props{})

	f.ctrl.CenterOnRoute("r1")
	f.clk.Add(time.Second)

	limit := narrow.Height * (1 - f.cfg.BottomPanelFraction)
	for _, p := range testRoutes()[0].Geometry.Coordinates {
		if y := f.engine.Project(p).Y; y < f.cfg.HeaderHeight || y > limit {
			t.Errorf("vertex %+v at y=%f outside visible band [%f,%f]", p, y, f.cfg.HeaderHeight, limit)
		}
	}
}

func TestCommands_NoOps(t *testing.T) {
	f := newFixture(t, wide, 10)
	f.render(mapview.Props{})

	f.ctrl.CenterOnPoint("missing")
	f.ctrl.CenterOnRoute("missing")
	f.ctrl.CenterOnRoute("r3") // no geometry
	f.ctrl.OpenPointPopup("missing")

	if f.engine.Busy() {
		t.Error("no-op command moved the camera")
	}
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupNone {
		t.Errorf("unexpected popup %+v", p)
	}
}

func TestCommands_SurfaceUnavailable(t *testing.T) {
	ctrl := mapview.New(mapview.NewSurface(), mapview.DefaultConfig(), logging.Discard())
	ctrl.Render(mapview.Props{Buildings: testBuildings(), Routes: testRoutes()})

	ctrl.CenterOnPoint("a")
	ctrl.CenterOnRoute("r1")
	ctrl.FlyTo(52.5, 13.4, nil)

	f := newFixture(t, wide, 10)
	f.render(mapview.Props{})
	f.ctrl.Unmount()
	f.ctrl.CenterOnPoint("a")
	f.clk.Add(time.Second)
	if f.engine.Busy() || f.engine.Camera().Zoom != 10 {
		t.Error("unmounted controller drove the engine")
	}
}

func TestFlyTo_KeepsZoom(t *testing.T) {
	f := newFixture(t, wide, 13)
	var moves int
	f.render(mapview.Props{Callbacks: mapview.Callbacks{OnViewportChange: func(domain.Camera) { moves++ }}})

	f.ctrl.FlyTo(52.49, 13.41, nil)
	f.clk.Add(time.Second)

	want := domain.Camera{Center: domain.GeoPoint{Lat: 52.49, Lon: 13.41}, Zoom: 13}
	if cam := f.engine.Camera(); cam != want {
		t.Errorf("expected %+v, got %+v", want, cam)
	}
	if moves != 1 {
		t.Errorf("expected one viewport change, got %d", moves)
	}
}

// --- OpenPointPopup ---

func TestOpenPointPopup_Desktop(t *testing.T) {
	f := newFixture(t, wide, 10)
	f.render(mapview.Props{})

	f.ctrl.OpenPointPopup("a")
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupDetailed || p.ID != "a" {
		t.Errorf("expected detailed(a) right away, got %+v", p)
	}
}

func TestOpenPointPopup_TouchWaitsForCompletion(t *testing.T) {
	f := newFixture(t, narrow, 10)
	changes := 0
	f.ctrl.OnChange(func() { changes++ })
	f.render(mapview.Props{Touch: true})

	f.ctrl.OpenPointPopup("a")
	f.clk.Add(time.Second)
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupNone {
		t.Fatalf("popup opened before centering finished: %+v", p)
	}
	f.clk.Add(time.Second)
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupDetailed || p.ID != "a" {
		t.Fatalf("expected detailed(a), got %+v", p)
	}
	if changes != 1 {
		t.Errorf("expected 1 change notification, got %d", changes)
	}
	if f.engine.Busy() {
		t.Error("popup opened while the camera was moving")
	}
}

func TestOpenPointPopup_TouchSupersededNeverOpens(t *testing.T) {
	f := newFixture(t, narrow, 10)
	f.render(mapview.Props{Touch: true})

	f.ctrl.OpenPointPopup("a")
	f.clk.Add(1500 * time.Millisecond)
	f.ctrl.FlyTo(52.45, 13.30, nil)
	f.clk.Add(5 * time.Second)

	if p := f.ctrl.Popup(); p.Kind != mapview.PopupNone {
		t.Errorf("superseded popup opened: %+v", p)
	}
}

// The fixed delay does not wait for the camera: on a slow animation the
// popup opens mid-flight.
func TestOpenPointPopup_TouchFixedDelay(t *testing.T) {
	f := newFixture(t, narrow, 10, func(c *mapview.Config) {
		c.PopupSequencing = mapview.SequenceFixedDelay
		c.FlyDuration = 2 * time.Second
	})
	f.render(mapview.Props{Touch: true})

	f.ctrl.OpenPointPopup("a")
	f.clk.Add(1099 * time.Millisecond)
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupNone {
		t.Fatalf("popup opened before the delay: %+v", p)
	}
	f.clk.Add(time.Millisecond)
	if p := f.ctrl.Popup(); p.Kind != mapview.PopupDetailed {
		t.Fatalf("expected detailed popup after the delay, got %+v", p)
	}
	if !f.engine.Busy() {
		t.Error("expected the camera to still be moving")
	}
}
