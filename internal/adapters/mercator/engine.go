package mercator

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/archmap/internal/core/domain"
	"github.com/samirrijal/archmap/internal/core/mapview"
	"github.com/samirrijal/archmap/internal/pkg/metrics"
)

// Command kinds.
const (
	KindFlyTo     = "fly_to"
	KindFitBounds = "fit_bounds"
)

// Command is one camera animation as forwarded to a remote renderer.
type Command struct {
	ID       uint64         `json:"id"`
	Kind     string         `json:"kind"`
	Target   domain.Camera  `json:"target"`
	Bounds   *domain.Bounds `json:"bounds,omitempty"`
	Duration time.Duration  `json:"-"`
}

// CommandSink receives every command the engine issues.
type CommandSink func(Command)

// Option configures an Engine.
type Option func(*Engine)

// WithSink forwards every command to sink.
func WithSink(sink CommandSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithRemoteCompletion makes the engine wait for Complete instead of
// finishing animations on its own clock.
func WithRemoteCompletion() Option {
	return func(e *Engine) { e.remote = true }
}

// WithZoomRange sets the zoom limits.
func WithZoomRange(lo, hi float64) Option {
	return func(e *Engine) { e.minZoom, e.maxZoom = lo, hi }
}

// Engine implements mapview.Engine. Camera moves are animated by waiting out
// the command duration on the clock, then jumping to the target; only the
// newest command ever completes.
type Engine struct {
	clock   clock.Clock
	sink    CommandSink
	remote  bool
	minZoom float64
	maxZoom float64

	mu       sync.Mutex
	size     mapview.Size
	camera   domain.Camera
	current  uint64 // id of the newest command
	inflight bool
	timer    *clock.Timer

	nextListener int
	clickFns     map[int]func(domain.GeoPoint)
	moveFns      map[int]func(mapview.MoveEnd)
	onceFns      map[int]func(mapview.MoveEnd)
}

var _ mapview.Engine = (*Engine)(nil)

// New returns an engine showing cam in a viewport of the given size.
func New(clk clock.Clock, size mapview.Size, cam domain.Camera, opts ...Option) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	e := &Engine{
		clock:    clk,
		minZoom:  0,
		maxZoom:  22,
		size:     size,
		camera:   cam,
		clickFns: map[int]func(domain.GeoPoint){},
		moveFns:  map[int]func(mapview.MoveEnd){},
		onceFns:  map[int]func(mapview.MoveEnd){},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Camera() domain.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

func (e *Engine) Size() mapview.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

// SetSize records a viewport resize.
func (e *Engine) SetSize(s mapview.Size) {
	e.mu.Lock()
	e.size = s
	e.mu.Unlock()
}

// Busy reports whether an animation is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight
}

func (e *Engine) Project(p domain.GeoPoint) mapview.ScreenPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Project(e.camera, e.size, p)
}

func (e *Engine) Unproject(sp mapview.ScreenPoint) domain.GeoPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Unproject(e.camera, e.size, sp)
}

func (e *Engine) FlyTo(opts mapview.FlyOptions) uint64 {
	target := domain.Camera{Center: opts.Center, Zoom: clamp(opts.Zoom, e.minZoom, e.maxZoom)}
	return e.start(Command{Kind: KindFlyTo, Target: target, Duration: opts.Duration})
}

func (e *Engine) FitBounds(b domain.Bounds, opts mapview.FitOptions) uint64 {
	maxZoom := e.maxZoom
	if opts.MaxZoom > 0 && opts.MaxZoom < maxZoom {
		maxZoom = opts.MaxZoom
	}
	target := FitCamera(b, e.Size(), opts.Padding, e.minZoom, maxZoom)
	return e.start(Command{Kind: KindFitBounds, Target: target, Bounds: &b, Duration: opts.Duration})
}

func (e *Engine) start(cmd Command) uint64 {
	e.mu.Lock()
	if e.inflight {
		metrics.CameraSuperseded.Inc()
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.current++
	cmd.ID = e.current
	e.inflight = true
	if !e.remote {
		id := cmd.ID
		e.timer = e.clock.AfterFunc(cmd.Duration, func() { e.Complete(id, cmd.Target) })
	}
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink(cmd)
	}
	return cmd.ID
}

// Complete finishes command id at cam. It reports false, and changes nothing,
// when id is not the newest command or has already completed.
func (e *Engine) Complete(id uint64, cam domain.Camera) bool {
	e.mu.Lock()
	if id != e.current || !e.inflight {
		e.mu.Unlock()
		return false
	}
	e.inflight = false
	e.timer = nil
	e.camera = cam
	fns := e.takeMoveListenersLocked()
	e.mu.Unlock()

	ev := mapview.MoveEnd{Command: id, Camera: cam}
	for _, fn := range fns {
		fn(ev)
	}
	return true
}

// UserMove records a camera change made directly by the user. It interrupts
// any animation in flight.
func (e *Engine) UserMove(cam domain.Camera) {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.inflight {
		e.current++
		e.inflight = false
	}
	e.camera = cam
	fns := e.takeMoveListenersLocked()
	e.mu.Unlock()

	ev := mapview.MoveEnd{Camera: cam}
	for _, fn := range fns {
		fn(ev)
	}
}

// Click delivers a click at p to the click listeners on the caller's goroutine.
func (e *Engine) Click(p domain.GeoPoint) {
	e.mu.Lock()
	fns := make([]func(domain.GeoPoint), 0, len(e.clickFns))
	for _, fn := range e.clickFns {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// takeMoveListenersLocked snapshots the move-end listeners and drops the
// one-shot ones.
func (e *Engine) takeMoveListenersLocked() []func(mapview.MoveEnd) {
	fns := make([]func(mapview.MoveEnd), 0, len(e.moveFns)+len(e.onceFns))
	for _, fn := range e.moveFns {
		fns = append(fns, fn)
	}
	for id, fn := range e.onceFns {
		fns = append(fns, fn)
		delete(e.onceFns, id)
	}
	return fns
}

func (e *Engine) OnClick(fn func(domain.GeoPoint)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.register()
	e.clickFns[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.clickFns, id)
		e.mu.Unlock()
	}
}

func (e *Engine) OnMoveEnd(fn func(mapview.MoveEnd)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.register()
	e.moveFns[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.moveFns, id)
		e.mu.Unlock()
	}
}

func (e *Engine) OnceMoveEnd(fn func(mapview.MoveEnd)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.register()
	e.onceFns[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.onceFns, id)
		e.mu.Unlock()
	}
}

// Listeners returns the number of registered click, move-end and one-shot
// move-end listeners.
func (e *Engine) Listeners() (click, move, once int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clickFns), len(e.moveFns), len(e.onceFns)
}

func (e *Engine) register() int {
	e.nextListener++
	return e.nextListener
}
