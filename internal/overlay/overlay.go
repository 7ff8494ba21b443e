// Package overlay draws caller content on top of the frame surface. Layers
// follow the scroll progress the same way the hero copy does on the site:
// they fade and drift up as the sequence advances.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/framescroll/internal/effects"
)

// Layer draws itself onto dst for the given progress and pixel ratio.
type Layer interface {
	Draw(dst draw.Image, progress, dpr float64)
}

// Composite copies base and draws every layer over the copy.
func Composite(base *image.RGBA, layers []Layer, progress, dpr float64) *image.RGBA {
	out := image.NewRGBA(base.Rect)
	copy(out.Pix, base.Pix)
	for _, l := range layers {
		l.Draw(out, progress, dpr)
	}
	return out
}

// Text renders a title and an optional subtitle centered on the surface.
type Text struct {
	Title    string
	Subtitle string
	// Scale enlarges the 7x13 bitmap face, in CSS pixels per font pixel.
	Scale float64
	Color color.RGBA
}

func NewText(title, subtitle string) *Text {
	return &Text{Title: title, Subtitle: subtitle, Scale: 4, Color: color.RGBA{245, 247, 250, 255}}
}

func (t *Text) Draw(dst draw.Image, progress, dpr float64) {
	if t.Title == "" && t.Subtitle == "" {
		return
	}
	style := effects.OverlayAt(progress)
	bounds := dst.Bounds()
	centerY := float64(bounds.Min.Y+bounds.Dy()/2) + style.OffsetY*dpr

	titleScale := t.Scale * dpr
	subScale := titleScale / 2
	lineH := float64(basicfont.Face7x13.Height)

	y := centerY - lineH*titleScale/2
	if t.Subtitle != "" {
		y -= lineH * subScale / 2
	}
	if t.Title != "" {
		t.drawLine(dst, t.Title, titleScale, y, style.Opacity)
		y += lineH * titleScale
	}
	if t.Subtitle != "" {
		t.drawLine(dst, t.Subtitle, subScale, y, style.Opacity*0.8)
	}
}

func (t *Text) drawLine(dst draw.Image, s string, scale, top, opacity float64) {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(s).Ceil()
	if width == 0 {
		return
	}

	mask := image.NewRGBA(image.Rect(0, 0, width, face.Height))
	d.Dst = mask
	d.Src = image.NewUniform(fadeColor(t.Color, opacity))
	d.Dot = fixed.P(0, face.Ascent)
	d.DrawString(s)

	b := dst.Bounds()
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(face.Height) * scale))
	x := b.Min.X + (b.Dx()-w)/2
	y := int(math.Round(top))
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+w, y+h), mask, mask.Bounds(), draw.Over, nil)
}

// QR renders a QR code for Link in the bottom-right corner.
type QR struct {
	Link string
	// Size and Margin are in CSS pixels.
	Size   float64
	Margin float64

	code *qrcode.QRCode
}

func NewQR(link string) (*QR, error) {
	code, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return &QR{Link: link, Size: 96, Margin: 24, code: code}, nil
}

func (q *QR) Draw(dst draw.Image, progress, dpr float64) {
	if q.code == nil {
		return
	}
	style := effects.OverlayAt(progress)
	size := int(math.Round(q.Size * dpr))
	if size <= 0 {
		return
	}
	img := q.code.Image(size)

	b := dst.Bounds()
	margin := int(math.Round(q.Margin * dpr))
	x := b.Max.X - margin - img.Bounds().Dx()
	y := b.Max.Y - margin - img.Bounds().Dy() + int(math.Round(style.OffsetY*dpr))
	r := image.Rect(x, y, x+img.Bounds().Dx(), y+img.Bounds().Dy())

	alpha := image.NewUniform(color.Alpha{A: uint8(math.Round(effects.Clamp01(style.Opacity) * 255))})
	draw.DrawMask(dst, r, img, img.Bounds().Min, alpha, image.Point{}, draw.Over)
}

// fadeColor returns c with its alpha scaled by opacity, premultiplied.
func fadeColor(c color.RGBA, opacity float64) color.RGBA {
	o := effects.Clamp01(opacity)
	return color.RGBA{
		R: uint8(math.Round(float64(c.R) * o)),
		G: uint8(math.Round(float64(c.G) * o)),
		B: uint8(math.Round(float64(c.B) * o)),
		A: uint8(math.Round(float64(c.A) * o)),
	}
}
