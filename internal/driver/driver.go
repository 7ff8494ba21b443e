// Package driver binds a frame cache and a presenter to scroll position.
//
// The driver has two states. Static: nothing is bound, either because the
// host prefers reduced motion (frame 0 is painted once) or because the driver
// is not mounted. Bound: the host region is pinned for a scroll distance
// proportional to the frame count and every scroll event selects
// round(progress*(N-1)) as the frame to paint.
//
// Goroutines: host events arrive on the host's goroutine, cache completions on
// loader goroutines. Both go through one mutex, so the most recent target
// always wins the next paint.
package driver

import (
	"image"
	"math"
	"sync"

	"github.com/ivlev/framescroll/internal/cache"
	"github.com/ivlev/framescroll/internal/effects"
)

type State int

const (
	Static State = iota
	Bound
)

func (s State) String() string {
	if s == Bound {
		return "bound"
	}
	return "static"
}

// Host is the environment the driver is mounted into: a scripted timeline
// or a desktop window.
type Host interface {
	PrefersReducedMotion() bool
	// Size returns the surface size in CSS pixels and the device pixel ratio.
	Size() (w, h, dpr float64)
	// Pin holds the region in place for distance pixels of scrolling.
	Pin(distance float64) (release func())
	// OnScroll reports the scroll offset inside the pinned region.
	OnScroll(fn func(offset float64)) (cancel func())
	OnResize(fn func(w, h, dpr float64)) (cancel func())
}

// Frames is the read side of the frame cache used by the driver.
type Frames interface {
	Len() int
	EnsureAhead(center, window int)
	Get(i int) (image.Image, bool)
	Subscribe(fn func(cache.Event)) (cancel func())
}

// Painter owns the drawing surface.
type Painter interface {
	Resize(cssW, cssH, dpr float64) bool
	Paint(img image.Image, zoom float64) bool
}

type Options struct {
	// Window is the look-ahead around the current target. Zero means 12.
	Window int
	// Prime is the look-ahead requested on mount. Zero means 16.
	Prime int
	// PxPerFrame sets the pinned scroll distance: N*PxPerFrame. Zero means 6.
	PxPerFrame float64
	Effect     effects.Effect
	// OnProgress receives every progress update in Bound state.
	OnProgress func(progress float64)
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = 12
	}
	if o.Prime <= 0 {
		o.Prime = 16
	}
	if o.PxPerFrame <= 0 {
		o.PxPerFrame = 6
	}
	if o.Effect == nil {
		o.Effect = effects.None{}
	}
	return o
}

type Driver struct {
	host    Host
	frames  Frames
	painter Painter
	opts    Options

	mu       sync.Mutex
	state    State
	mounted  bool
	done     bool
	reduced  bool
	painted0 bool
	target   int
	progress float64
	distance float64
	releases []func()
}

func New(host Host, frames Frames, painter Painter, opts Options) *Driver {
	return &Driver{
		host:    host,
		frames:  frames,
		painter: painter,
		opts:    opts.withDefaults(),
	}
}

// Mount binds the driver once per lifetime. An empty sequence leaves the
// driver Static with nothing painted.
func (d *Driver) Mount() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mounted || d.done {
		return
	}
	d.mounted = true

	n := d.frames.Len()
	if n == 0 {
		return
	}

	d.resizeLocked(d.host.Size())
	d.releases = append(d.releases, d.frames.Subscribe(d.handleEvent))
	d.frames.EnsureAhead(0, d.opts.Prime)

	if d.host.PrefersReducedMotion() {
		d.reduced = true
		d.paintStaticLocked()
		return
	}

	d.distance = float64(n) * d.opts.PxPerFrame
	d.releases = append(d.releases, d.host.Pin(d.distance))
	d.releases = append(d.releases, d.host.OnScroll(d.handleScroll))
	d.releases = append(d.releases, d.host.OnResize(d.handleResize))
	d.state = Bound
	d.paintLocked()
}

// Unmount releases listeners, the cache subscription and the pin in reverse
// order of acquisition. Later events are ignored.
func (d *Driver) Unmount() {
	d.mu.Lock()
	releases := d.releases
	d.releases = nil
	d.done = true
	d.state = Static
	d.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

func (d *Driver) handleScroll(offset float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Bound {
		return
	}

	d.progress = Progress(offset, d.distance)
	d.target = TargetIndex(d.progress, d.frames.Len())
	if d.opts.OnProgress != nil {
		d.opts.OnProgress(d.progress)
	}
	d.frames.EnsureAhead(d.target, d.opts.Window)
	d.paintLocked()
}

func (d *Driver) handleResize(w, h, dpr float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Bound {
		return
	}
	d.resizeLocked(w, h, dpr)
	d.paintLocked()
}

func (d *Driver) handleEvent(ev cache.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done || !d.mounted {
		return
	}

	if d.reduced {
		if ev.Index == 0 {
			d.paintStaticLocked()
		}
		return
	}

	if ev.First {
		d.resizeLocked(d.host.Size())
	}
	// Repaint the current target, not necessarily the frame that just loaded
	d.paintLocked()
}

// Repaint paints the current target again. Callers that await a load
// themselves use it instead of racing the cache notification.
func (d *Driver) Repaint() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done || !d.mounted || d.frames.Len() == 0 {
		return
	}
	if d.reduced {
		d.paintStaticLocked()
		return
	}
	d.paintLocked()
}

func (d *Driver) resizeLocked(w, h, dpr float64) {
	d.painter.Resize(w, h, dpr)
}

func (d *Driver) paintLocked() {
	img, ok := d.frames.Get(d.target)
	if !ok {
		return
	}
	d.painter.Paint(img, d.opts.Effect.ZoomAt(d.progress))
}

// paintStaticLocked paints frame 0 at most once per lifetime.
func (d *Driver) paintStaticLocked() {
	if d.painted0 {
		return
	}
	img, ok := d.frames.Get(0)
	if !ok {
		return
	}
	d.painted0 = true
	d.painter.Paint(img, d.opts.Effect.ZoomAt(0))
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) Progress() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

func (d *Driver) Target() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

// Distance is the pinned scroll distance in pixels; zero until bound.
func (d *Driver) Distance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.distance
}

// Progress maps a scroll offset inside a pinned region of length distance
// onto [0, 1].
func Progress(offset, distance float64) float64 {
	if distance <= 0 || math.IsNaN(offset) {
		return 0
	}
	return effects.Clamp01(offset / distance)
}

// TargetIndex selects the frame for progress in a sequence of n frames.
// The result is always within [0, n-1]; n == 0 yields 0.
func TargetIndex(progress float64, n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(math.Round(effects.Clamp01(progress) * float64(n-1)))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}
