package mapview

import (
	"sync"
	"time"

	"github.com/samirrijal/archmap/internal/core/domain"
)

// ScreenPoint is a position in viewport pixels, origin at the top-left corner.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the viewport size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Padding is per-side padding in pixels.
type Padding struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// FlyOptions describes an animated move to a camera.
type FlyOptions struct {
	Center   domain.GeoPoint
	Zoom     float64
	Duration time.Duration
}

// FitOptions describes an animated move that frames a bounding box.
type FitOptions struct {
	Padding  Padding
	MaxZoom  float64
	Duration time.Duration
}

// MoveEnd is emitted when a camera move settles. Command is the id returned by
// FlyTo or FitBounds, or 0 for a move the user made directly.
type MoveEnd struct {
	Command uint64
	Camera  domain.Camera
}

// Engine is the map engine the controller drives. A newer command supersedes
// any in-flight animation, and a superseded command never emits MoveEnd.
// Implementations must not invoke listeners from inside FlyTo or FitBounds.
type Engine interface {
	Camera() domain.Camera
	Size() Size
	FlyTo(opts FlyOptions) uint64
	FitBounds(b domain.Bounds, opts FitOptions) uint64
	Project(p domain.GeoPoint) ScreenPoint
	Unproject(s ScreenPoint) domain.GeoPoint
	OnClick(fn func(domain.GeoPoint)) (off func())
	OnMoveEnd(fn func(MoveEnd)) (off func())
	OnceMoveEnd(fn func(MoveEnd)) (off func())
}

// Surface guards access to an Engine that may not exist yet or may already be
// gone. Every method degrades to a no-op while nothing is mounted.
type Surface struct {
	mu     sync.RWMutex
	engine Engine
}

// NewSurface returns an unmounted surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Mount attaches e. A previously mounted engine is replaced.
func (s *Surface) Mount(e Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

// Unmount detaches the engine.
func (s *Surface) Unmount() {
	s.mu.Lock()
	s.engine = nil
	s.mu.Unlock()
}

// Mounted reports whether an engine is attached.
func (s *Surface) Mounted() bool {
	return s.get() != nil
}

func (s *Surface) get() Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Surface) Camera() (domain.Camera, bool) {
	e := s.get()
	if e == nil {
		return domain.Camera{}, false
	}
	return e.Camera(), true
}

func (s *Surface) Size() (Size, bool) {
	e := s.get()
	if e == nil {
		return Size{}, false
	}
	return e.Size(), true
}

func (s *Surface) FlyTo(opts FlyOptions) (uint64, bool) {
	e := s.get()
	if e == nil {
		return 0, false
	}
	return e.FlyTo(opts), true
}

func (s *Surface) FitBounds(b domain.Bounds, opts FitOptions) (uint64, bool) {
	e := s.get()
	if e == nil {
		return 0, false
	}
	return e.FitBounds(b, opts), true
}

func (s *Surface) Project(p domain.GeoPoint) (ScreenPoint, bool) {
	e := s.get()
	if e == nil {
		return ScreenPoint{}, false
	}
	return e.Project(p), true
}

func (s *Surface) Unproject(sp ScreenPoint) (domain.GeoPoint, bool) {
	e := s.get()
	if e == nil {
		return domain.GeoPoint{}, false
	}
	return e.Unproject(sp), true
}

// OnceMoveEnd registers a one-shot listener. The returned func is never nil.
func (s *Surface) OnceMoveEnd(fn func(MoveEnd)) (off func()) {
	e := s.get()
	if e == nil {
		return func() {}
	}
	return e.OnceMoveEnd(fn)
}
