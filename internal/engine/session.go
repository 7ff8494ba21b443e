package engine

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/ivlev/framescroll/internal/cache"
	"github.com/ivlev/framescroll/internal/canvas"
	"github.com/ivlev/framescroll/internal/config"
	"github.com/ivlev/framescroll/internal/driver"
	"github.com/ivlev/framescroll/internal/effects"
	"github.com/ivlev/framescroll/internal/overlay"
	"github.com/ivlev/framescroll/internal/source"
	"github.com/ivlev/framescroll/internal/system"
)

// Session связывает источник, кэш, холст и драйвер прокрутки для одного
// хоста. Используется и при записи видео, и в окне предпросмотра.
// Методы вызываются из одной горутины: Reload заменяет Cache и Driver.
type Session struct {
	Sequence  *source.Sequence
	Cache     *cache.Cache
	Presenter *canvas.Presenter
	Driver    *driver.Driver
	Layers    []overlay.Layer

	cfg    *config.Config
	host   driver.Host
	ex     source.Extractor
	loader cache.Loader
	budget system.LoadBudget
	closed bool
}

// Open разрешает источник кадров и монтирует драйвер на host.
// Пустая последовательность не ошибка: драйвер остается Static, холст пуст.
func Open(ctx context.Context, cfg *config.Config, host driver.Host, ex source.Extractor, loader cache.Loader) (*Session, error) {
	seq, err := resolve(ctx, cfg.Sequence, ex)
	if err != nil {
		return nil, err
	}

	// Оценка размера кадра по поверхности: кадры обычно близки к ней
	frameBytes := int64(float64(cfg.Width)*cfg.DPR) * int64(float64(cfg.Height)*cfg.DPR) * 4
	budget := system.SuggestLoadBudget(frameBytes, cfg.Window)
	if cfg.MaxConcurrent > 0 {
		budget.MaxConcurrent = cfg.MaxConcurrent
	}
	if budget.Window < cfg.Window {
		fmt.Printf("[*] Окно предзагрузки уменьшено до %d кадров (память)\n", budget.Window)
	}

	if loader == nil {
		loader = source.NewLoader(cfg.Sequence.DPI)
	}

	s := &Session{
		Presenter: canvas.New(canvas.WithScaler(canvas.ScalerByName(cfg.Interpolator))),
		Layers:    buildLayers(cfg.Overlay),
		cfg:       cfg,
		host:      host,
		ex:        ex,
		loader:    loader,
		budget:    budget,
	}
	s.mount(seq)
	return s, nil
}

func resolve(ctx context.Context, cfg config.Sequence, ex source.Extractor) (*source.Sequence, error) {
	seq, err := source.Resolve(ctx, cfg, ex, progressPrinter("Извлечение кадров"))
	if err != nil {
		return nil, fmt.Errorf("ошибка источника кадров: %w", err)
	}
	if seq.Len() == 0 {
		log.Printf("[!] Источник не содержит кадров")
	}
	return seq, nil
}

// mount создает кэш и драйвер для seq. Холст переживает смену источника:
// до загрузки первого нового кадра на нем остается старое изображение.
func (s *Session) mount(seq *source.Sequence) {
	s.Sequence = seq
	s.Cache = cache.New(seq.Frames(), s.loader, cache.Options{MaxConcurrent: s.budget.MaxConcurrent})
	s.Driver = driver.New(s.host, s.Cache, s.Presenter, driver.Options{
		Window:     s.budget.Window,
		Prime:      s.cfg.Prime,
		PxPerFrame: s.cfg.PxPerFrame,
		Effect:     effects.New(s.cfg.ZoomFrom, s.cfg.ZoomTo),
	})
	s.Driver.Mount()
}

// unmount снимает драйвер и освобождает кэш и временные кадры.
func (s *Session) unmount() {
	s.Driver.Unmount()
	s.Cache.Close()
	s.Cache.Wait()
	if err := s.Sequence.Close(); err != nil {
		log.Printf("[!] Не удалось удалить временные кадры: %v", err)
	}
}

// Reload разрешает источник заново. Если список кадров не изменился
// (тот же Key), сессия остается прежней и возвращается false. Иначе старые
// кэш и драйвер освобождаются и монтируются новые.
func (s *Session) Reload(ctx context.Context, cfg config.Sequence) (bool, error) {
	if s.closed {
		return false, fmt.Errorf("session is closed")
	}
	seq, err := resolve(ctx, cfg, s.ex)
	if err != nil {
		return false, err
	}
	if seq.Key() == s.Sequence.Key() {
		if err := seq.Close(); err != nil {
			log.Printf("[!] Не удалось удалить временные кадры: %v", err)
		}
		return false, nil
	}

	s.unmount()
	s.cfg.Sequence = cfg
	s.mount(seq)
	fmt.Printf("[*] Источник обновлен: %d кадров\n", seq.Len())
	return true, nil
}

func buildLayers(o config.Overlay) []overlay.Layer {
	var layers []overlay.Layer
	if o.Title != "" || o.Subtitle != "" {
		layers = append(layers, overlay.NewText(o.Title, o.Subtitle))
	}
	if o.QRLink != "" {
		qr, err := overlay.NewQR(o.QRLink)
		if err != nil {
			log.Printf("[!] QR-код не создан: %v", err)
		} else {
			layers = append(layers, qr)
		}
	}
	return layers
}

// Frame возвращает текущее содержимое холста с наложенными слоями.
func (s *Session) Frame() *image.RGBA {
	base := s.Presenter.Snapshot()
	if len(s.Layers) == 0 {
		return base
	}
	return overlay.Composite(base, s.Layers, s.Driver.Progress(), s.Presenter.Viewport().DPR)
}

// Show прокручивает host к progress и ждет загрузки целевого кадра.
// Если кадр не загрузился, на холсте остается предыдущее изображение.
func (s *Session) Show(ctx context.Context, host *driver.ScriptedHost, progress float64) (cache.State, error) {
	if s.Sequence.Len() == 0 {
		return cache.NotRequested, nil
	}

	target := 0
	if s.Driver.State() == driver.Bound {
		host.ScrollToProgress(progress)
		target = s.Driver.Target()
	}

	state, err := s.Cache.Await(ctx, target)
	if err != nil {
		return state, err
	}
	s.Driver.Repaint()
	return state, nil
}

// Close размонтирует драйвер, освобождает кэш и временные кадры. Повторный
// вызов ничего не делает.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.unmount()
}

// progressPrinter печатает прогресс в одну строку в терминале и каждые 10%
// при выводе в файл.
func progressPrinter(label string) func(float64) {
	tty := system.IsTerminal()
	lastDecile := -1
	return func(p float64) {
		pct := int(p * 100)
		if tty {
			fmt.Printf("\r[*] %s: %3d%%", label, pct)
			if pct >= 100 {
				fmt.Println()
			}
			return
		}
		if d := pct / 10; d != lastDecile {
			fmt.Printf("[*] %s: %d%%\n", label, pct)
			lastDecile = d
		}
	}
}
