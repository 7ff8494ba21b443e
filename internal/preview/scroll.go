// Package preview shows a sequence in a desktop window: the mouse wheel and
// the keyboard scroll through the pinned region like a page would.
package preview

import (
	"math"

	"github.com/ivlev/framescroll/internal/canvas"
	"github.com/ivlev/framescroll/internal/driver"
)

// Шаг прокрутки в CSS-пикселях
const (
	wheelStep = 40
	keyStep   = 12
)

// scroller хранит смещение внутри закрепленной области и передает его хосту.
type scroller struct {
	host   *driver.ScriptedHost
	offset float64
}

// by сдвигает смещение на delta и сообщает хосту, если оно изменилось.
func (s *scroller) by(delta float64) bool {
	return s.to(s.offset + delta)
}

// to ставит смещение, ограниченное длиной закрепленной области.
func (s *scroller) to(offset float64) bool {
	next := clampOffset(offset, s.host.Pinned())
	if next == s.offset {
		return false
	}
	s.offset = next
	s.host.Scroll(next)
	return true
}

func clampOffset(offset, distance float64) float64 {
	if math.IsNaN(offset) || offset < 0 || distance <= 0 {
		return 0
	}
	return math.Min(offset, distance)
}

// surfaceSize переводит размер окна в пикселях устройства с тем же
// ограничением плотности, что и у холста.
func surfaceSize(w, h int, scale float64) (int, int) {
	if scale < 1 || math.IsNaN(scale) {
		scale = 1
	}
	scale = math.Min(scale, canvas.MaxDPR)
	return int(math.Floor(float64(w) * scale)), int(math.Floor(float64(h) * scale))
}
