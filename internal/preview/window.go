//go:build !headless

package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"

	"github.com/ivlev/framescroll/internal/driver"
)

// Window — окно Ebitengine, которое служит хостом для драйвера прокрутки.
// Колесо мыши, стрелки, PageUp/PageDown, Home/End двигают прокрутку;
// C копирует текущий кадр в буфер обмена, R перечитывает источник,
// F12 переключает строку состояния.
type Window struct {
	*driver.ScriptedHost

	title  string
	scroll scroller

	mu         sync.Mutex
	frame      func() *image.RGBA
	status     func() string
	reload     func()
	showStatus bool
	surface    *ebiten.Image
	cssW, cssH int

	clipboardOnce sync.Once
	clipboardOK   bool
}

func NewWindow(title string, width, height int, reducedMotion bool) *Window {
	host := driver.NewScriptedHost(float64(width), float64(height), deviceScale(), reducedMotion)
	return &Window{
		ScriptedHost: host,
		title:        title,
		scroll:       scroller{host: host},
		showStatus:   true,
		cssW:         width,
		cssH:         height,
	}
}

// Attach задает источник кадра для отрисовки и текст строки состояния.
func (w *Window) Attach(frame func() *image.RGBA, status func() string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frame = frame
	w.status = status
}

// OnReload задает действие на клавишу R. Вызывается из цикла Update,
// в той же горутине, что и отрисовка.
func (w *Window) OnReload(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reload = fn
}

// Run открывает окно и блокируется до его закрытия.
func (w *Window) Run() error {
	ebiten.SetWindowSize(w.cssW, w.cssH)
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(w); err != nil {
		return fmt.Errorf("preview window: %w", err)
	}
	return nil
}

func (w *Window) Update() error {
	if ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if _, dy := ebiten.Wheel(); dy != 0 {
		w.scroll.by(-dy * wheelStep)
	}
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyArrowDown):
		w.scroll.by(keyStep)
	case ebiten.IsKeyPressed(ebiten.KeyArrowUp):
		w.scroll.by(-keyStep)
	}
	_, h, _ := w.Size()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown):
		w.scroll.by(h)
	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp):
		w.scroll.by(-h)
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		w.scroll.to(0)
	case inpututil.IsKeyJustPressed(ebiten.KeyEnd):
		w.scroll.to(w.Pinned())
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		w.copyFrame()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		w.mu.Lock()
		reload := w.reload
		w.mu.Unlock()
		if reload != nil {
			reload()
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		w.mu.Lock()
		w.showStatus = !w.showStatus
		w.mu.Unlock()
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	frame, status, showStatus := w.frame, w.status, w.showStatus
	w.mu.Unlock()
	if frame == nil {
		return
	}

	img := frame()
	b := img.Bounds()
	if b.Empty() {
		return
	}
	if w.surface == nil || w.surface.Bounds().Dx() != b.Dx() || w.surface.Bounds().Dy() != b.Dy() {
		if w.surface != nil {
			w.surface.Deallocate()
		}
		w.surface = ebiten.NewImage(b.Dx(), b.Dy())
	}
	w.surface.WritePixels(img.Pix)

	// Холст может отставать от окна на один кадр после изменения размера
	op := &ebiten.DrawImageOptions{}
	sb := screen.Bounds()
	op.GeoM.Scale(float64(sb.Dx())/float64(b.Dx()), float64(sb.Dy())/float64(b.Dy()))
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(w.surface, op)

	if showStatus && status != nil {
		ebitenutil.DebugPrintAt(screen, status(), 8, 8)
	}
}

// copyFrame кладет текущий кадр с наложенными слоями в буфер обмена как PNG.
func (w *Window) copyFrame() {
	w.clipboardOnce.Do(func() {
		w.clipboardOK = clipboard.Init() == nil
	})
	w.mu.Lock()
	frame := w.frame
	w.mu.Unlock()
	if !w.clipboardOK || frame == nil {
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame()); err != nil {
		log.Printf("[!] Кадр не скопирован: %v", err)
		return
	}
	clipboard.Write(clipboard.FmtImage, buf.Bytes())
	fmt.Println("[*] Кадр скопирован в буфер обмена")
}

// Layout сообщает драйверу новый размер окна и возвращает размер экрана в
// пикселях устройства.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := deviceScale()
	cw, ch, dpr := w.Size()
	if int(cw) != outsideWidth || int(ch) != outsideHeight || dpr != scale {
		w.Resize(float64(outsideWidth), float64(outsideHeight), scale)
	}
	return surfaceSize(outsideWidth, outsideHeight, scale)
}

func deviceScale() float64 {
	if m := ebiten.Monitor(); m != nil {
		return m.DeviceScaleFactor()
	}
	return 1
}
