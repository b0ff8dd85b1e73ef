package mapview

import (
	"time"

	"github.com/facebookgo/clock"
)

// Sequencing selects how a touch device waits for centering before it opens
// the detailed popup.
type Sequencing string

const (
	// SequenceCompletion opens the popup when the centering move settles.
	SequenceCompletion Sequencing = "completion"
	// SequenceFixedDelay opens the popup after Config.TouchPopupDelay,
	// whether or not the camera has settled.
	SequenceFixedDelay Sequencing = "fixed_delay"
)

// Config tunes a Controller.
type Config struct {
	NarrowBreakpoint    float64 // px; narrower viewports show the bottom panel
	BottomPanelFraction float64 // share of the viewport height under the panel
	HeaderHeight        float64 // px; top inset on narrow viewports
	PointZoom           float64
	ZoomGapThreshold    float64
	FlyDuration         time.Duration
	FitPadding          float64
	PopupSequencing     Sequencing
	TouchPopupDelay     time.Duration
	Clock               clock.Clock
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		NarrowBreakpoint:    768,
		BottomPanelFraction: 0.45,
		HeaderHeight:        64,
		PointZoom:           17,
		ZoomGapThreshold:    2,
		FlyDuration:         time.Second,
		FitPadding:          48,
		PopupSequencing:     SequenceCompletion,
		TouchPopupDelay:     1100 * time.Millisecond,
	}
}

// insets are the parts of the viewport hidden behind application chrome.
type insets struct {
	top    float64
	bottom float64
}

func (c Config) insets(s Size) insets {
	if s.Width >= c.NarrowBreakpoint {
		return insets{}
	}
	return insets{top: c.HeaderHeight, bottom: s.Height * c.BottomPanelFraction}
}

func (in insets) zero() bool {
	return in.top == 0 && in.bottom == 0
}

// delta is the vertical pixel offset from a point to the camera center that
// puts the point in the middle of the visible band.
func (in insets) delta(s Size) float64 {
	visibleMidY := (in.top + (s.Height - in.bottom)) / 2
	return s.Height/2 - visibleMidY
}
