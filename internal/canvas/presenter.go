package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// MaxDPR caps the device pixel ratio to bound memory and CPU per frame.
const MaxDPR = 2

// Viewport is the drawing surface size in CSS pixels plus the device pixel
// ratio used for the backing store.
type Viewport struct {
	Width  float64
	Height float64
	DPR    float64
}

// BackingSize returns the backing store size in device pixels.
func (v Viewport) BackingSize() (int, int) {
	return int(math.Floor(v.Width * v.DPR)), int(math.Floor(v.Height * v.DPR))
}

// Presenter owns the drawing surface. All drawing goes through Resize and
// Paint; both are safe for concurrent use.
type Presenter struct {
	mu         sync.Mutex
	viewport   Viewport
	backing    *image.RGBA
	background image.Image
	scaler     xdraw.Interpolator
}

type Option func(*Presenter)

// WithBackground sets the clear color.
func WithBackground(c color.Color) Option {
	return func(p *Presenter) { p.background = image.NewUniform(c) }
}

// WithScaler selects the resampling kernel.
func WithScaler(s xdraw.Interpolator) Option {
	return func(p *Presenter) { p.scaler = s }
}

// ScalerByName maps a config value onto an x/image/draw kernel.
func ScalerByName(name string) xdraw.Interpolator {
	switch name {
	case "nearest":
		return xdraw.NearestNeighbor
	case "bilinear":
		return xdraw.BiLinear
	case "catmullrom":
		return xdraw.CatmullRom
	default:
		return xdraw.ApproxBiLinear
	}
}

func New(opts ...Option) *Presenter {
	p := &Presenter{
		background: image.Transparent,
		scaler:     xdraw.ApproxBiLinear,
		backing:    image.NewRGBA(image.Rectangle{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resize sets the CSS box size and device pixel ratio. A missing ratio
// (zero or negative) means 1; ratios above MaxDPR are capped. The backing store is reallocated only when its pixel size
// changes; the return value reports whether that happened.
func (p *Presenter) Resize(cssW, cssH, dpr float64) bool {
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}
	dpr = math.Min(dpr, MaxDPR)
	cssW = math.Max(cssW, 0)
	cssH = math.Max(cssH, 0)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.viewport = Viewport{Width: cssW, Height: cssH, DPR: dpr}
	w, h := p.viewport.BackingSize()
	if p.backing.Rect.Dx() == w && p.backing.Rect.Dy() == h {
		return false
	}
	p.backing = image.NewRGBA(image.Rect(0, 0, w, h))
	return true
}

// Paint clears the surface and draws img with cover scaling multiplied by
// zoom. A nil image leaves the previous pixels untouched.
func (p *Presenter) Paint(img image.Image, zoom float64) bool {
	if img == nil {
		return false
	}
	ib := img.Bounds()
	if ib.Empty() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.backing.Rect.Empty() {
		return false
	}

	v := p.viewport
	x, y, w, h := CoverRect(v.Width, v.Height, float64(ib.Dx()), float64(ib.Dy()), zoom)
	// CSS pixels to device pixels
	dr := image.Rect(
		int(math.Round(x*v.DPR)),
		int(math.Round(y*v.DPR)),
		int(math.Round((x+w)*v.DPR)),
		int(math.Round((y+h)*v.DPR)),
	)

	draw.Draw(p.backing, p.backing.Rect, p.background, image.Point{}, draw.Src)
	p.scaler.Scale(p.backing, dr, img, ib, draw.Over, nil)
	return true
}

// CoverRect computes the destination rectangle that fills a w×h surface with
// an iw×ih image without distortion, centered, cropping overflow evenly.
func CoverRect(w, h, iw, ih, zoom float64) (x, y, dw, dh float64) {
	if iw <= 0 || ih <= 0 {
		return 0, 0, 0, 0
	}
	if zoom <= 0 {
		zoom = 1
	}
	scale := math.Max(w/iw, h/ih) * zoom
	dw = iw * scale
	dh = ih * scale
	return (w - dw) / 2, (h - dh) / 2, dw, dh
}

func (p *Presenter) Viewport() Viewport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport
}

// Snapshot returns a copy of the backing store.
func (p *Presenter) Snapshot() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := image.NewRGBA(p.backing.Rect)
	copy(cp.Pix, p.backing.Pix)
	return cp
}

// CopyTo copies the backing store into dst when the sizes match and reports
// whether it did.
func (p *Presenter) CopyTo(dst []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(dst) != len(p.backing.Pix) {
		return false
	}
	copy(dst, p.backing.Pix)
	return true
}
