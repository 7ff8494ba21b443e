package effects

import "math"

// Effect maps scroll progress onto a paint zoom factor.
type Effect interface {
	ZoomAt(progress float64) float64
}

// None paints frames at plain cover scale.
type None struct{}

func (None) ZoomAt(float64) float64 { return 1 }

// Zoom interpolates linearly between From (progress 0) and To (progress 1).
// The hero sequence on the site starts at 1.12 and settles at 1.0.
type Zoom struct {
	From float64
	To   float64
}

func (z Zoom) ZoomAt(progress float64) float64 {
	p := Clamp01(progress)
	return z.From + (z.To-z.From)*p
}

// New returns None when the zoom is constant at 1.
func New(from, to float64) Effect {
	if from <= 0 {
		from = 1
	}
	if to <= 0 {
		to = 1
	}
	if from == 1 && to == 1 {
		return None{}
	}
	return Zoom{From: from, To: to}
}

// Overlay styling driven by progress, in CSS pixels.
// Matches opacity: calc(0.95 - var(--progress) * 0.6) and
// translate3d(0, calc(var(--progress) * -40px), 0).
type OverlayStyle struct {
	Opacity float64
	OffsetY float64
}

func OverlayAt(progress float64) OverlayStyle {
	p := Clamp01(progress)
	return OverlayStyle{
		Opacity: 0.95 - p*0.6,
		OffsetY: -40 * p,
	}
}

// Clamp01 clamps v into [0, 1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
