//go:build headless

package preview

import (
	"errors"
	"image"

	"github.com/ivlev/framescroll/internal/driver"
)

// Window в сборке без графики только хранит состояние хоста.
type Window struct {
	*driver.ScriptedHost
	scroll scroller
}

func NewWindow(title string, width, height int, reducedMotion bool) *Window {
	host := driver.NewScriptedHost(float64(width), float64(height), 1, reducedMotion)
	return &Window{ScriptedHost: host, scroll: scroller{host: host}}
}

func (w *Window) Attach(frame func() *image.RGBA, status func() string) {}

func (w *Window) OnReload(fn func()) {}

func (w *Window) Run() error {
	return errors.New("preview is not available in headless build")
}
