package engine

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/framescroll/internal/cache"
	"github.com/ivlev/framescroll/internal/config"
	"github.com/ivlev/framescroll/internal/driver"
	"github.com/ivlev/framescroll/internal/source"
	"github.com/ivlev/framescroll/internal/timeline"
	"github.com/ivlev/framescroll/internal/video"
)

// FrameWriter принимает готовые кадры в порядке отрисовки.
type FrameWriter interface {
	WriteFrame(img image.Image) error
	// Frames возвращает число принятых кадров.
	Frames() int
	Close() error
}

// RenderProject записывает прокрутку последовательности в видео: сценарий
// прокрутки задает прогресс, драйвер выбирает кадр, кадр уходит в FFmpeg.
type RenderProject struct {
	Config    *config.Config
	Extractor source.Extractor
	// Loader и NewWriter подменяются в тестах.
	Loader    cache.Loader
	NewWriter func(ctx context.Context, path string, params video.StreamParams) (FrameWriter, error)
}

func NewRenderProject(cfg *config.Config, ex source.Extractor) *RenderProject {
	return &RenderProject{
		Config:    cfg,
		Extractor: ex,
		NewWriter: func(ctx context.Context, path string, params video.StreamParams) (FrameWriter, error) {
			return video.NewStreamEncoder(ctx, path, params)
		},
	}
}

// renderStats накапливает время стадий для отчета.
type renderStats struct {
	frames  int
	missing int
	wait    time.Duration
	encode  time.Duration
}

func (p *RenderProject) script() (*timeline.Script, error) {
	var script *timeline.Script
	if p.Config.ScriptPath != "" {
		s, err := timeline.ReadScript(p.Config.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения сценария: %w", err)
		}
		fmt.Printf("[*] Используется сценарий: %s\n", p.Config.ScriptPath)
		script = s
	} else {
		script = timeline.Default(p.Config.Duration, p.Config.FPS)
	}
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("некорректный сценарий: %w", err)
	}
	return script, nil
}

func (p *RenderProject) open(ctx context.Context) (*Session, *driver.ScriptedHost, error) {
	cfg := p.Config
	host := driver.NewScriptedHost(float64(cfg.Width), float64(cfg.Height), cfg.DPR, cfg.ReducedMotion)
	s, err := Open(ctx, cfg, host, p.Extractor, p.Loader)
	if err != nil {
		return nil, nil, err
	}
	return s, host, nil
}

func (p *RenderProject) Run(ctx context.Context) error {
	startTime := time.Now()

	script, err := p.script()
	if err != nil {
		return err
	}

	s, host, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.Sequence.Len() == 0 {
		return fmt.Errorf("источник не содержит кадров")
	}

	bw, bh := s.Presenter.Viewport().BackingSize()
	fmt.Println("--- [PROJECT: FRAME SCROLL] ---")
	fmt.Printf("[*] Кадров: %d | Прокрутка: %.0fpx\n", s.Sequence.Len(), s.Driver.Distance())
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS | Длительность: %.2fs | Состояние: %s\n",
		bw, bh, script.FPS, script.Duration, s.Driver.State())
	fmt.Println("-----------------------------")

	w, err := p.NewWriter(ctx, p.Config.OutputVideo, video.StreamParams{
		Width:   bw,
		Height:  bh,
		FPS:     script.FPS,
		Encoder: p.Config.VideoEncoder,
		Quality: p.Config.Quality,
	})
	if err != nil {
		return fmt.Errorf("ошибка запуска кодировщика: %w", err)
	}

	renderStart := time.Now()
	stats, err := p.pipeline(ctx, s, host, script, w)
	closeErr := w.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("ошибка сборки видео: %w", closeErr)
	}
	if n := w.Frames(); n != len(script.Samples()) {
		return fmt.Errorf("кодировщик принял %d кадров из %d", n, len(script.Samples()))
	}

	fmt.Printf("[+++] Успех! Видео сохранено: %s\n", p.Config.OutputVideo)
	if stats.missing > 0 {
		fmt.Printf("[!] Кадров без изображения: %d\n", stats.missing)
	}
	if p.Config.ShowStats {
		p.report(s, stats, time.Since(startTime), time.Since(renderStart))
	}
	return nil
}

// pipeline: прокрутка и отрисовка в одной горутине, кодирование в другой.
// Холст один, поэтому отрисовка последовательна; канал развязывает ее с FFmpeg.
func (p *RenderProject) pipeline(ctx context.Context, s *Session, host *driver.ScriptedHost, script *timeline.Script, w FrameWriter) (renderStats, error) {
	var stats renderStats
	samples := script.Samples()
	frames := make(chan *image.RGBA, 4)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for i, t := range samples {
			waitStart := time.Now()
			state, err := s.Show(gctx, host, script.ProgressAt(t))
			stats.wait += time.Since(waitStart)
			if err != nil {
				return fmt.Errorf("кадр %d: %w", i, err)
			}
			if state != cache.Loaded {
				stats.missing++
			}

			select {
			case frames <- s.Frame():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for img := range frames {
			encStart := time.Now()
			if err := w.WriteFrame(img); err != nil {
				return err
			}
			stats.encode += time.Since(encStart)
			stats.frames++
			if stats.frames%script.FPS == 0 || stats.frames == len(samples) {
				fmt.Printf("[>] Ready: %d/%d\n", stats.frames, len(samples))
			}
		}
		return nil
	})

	err := g.Wait()
	return stats, err
}

func (p *RenderProject) report(s *Session, stats renderStats, total, render time.Duration) {
	fps := float64(stats.frames) / total.Seconds()
	cs := s.Cache.Stats()

	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Rendering: %.2fs\n"+
			"Waiting for frames: %.2fs\n"+
			"Encoding: %.2fs\n"+
			"Frames encoded: %d (missing: %d)\n"+
			"Frames loaded/failed/total: %d/%d/%d\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		p.Config.BuildVersion, total.Seconds(), render.Seconds(), stats.wait.Seconds(), stats.encode.Seconds(),
		stats.frames, stats.missing, cs.Loaded, cs.Failed, cs.Total, fps,
	)
	fmt.Print(report)

	// Логирование в файл
	logEntry := fmt.Sprintf("[%s] Build: %s | Output: %s | Frames: %d | Total: %.2fs | Wait: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.OutputVideo),
		stats.frames,
		total.Seconds(),
		stats.wait.Seconds(),
		stats.encode.Seconds(),
		fps,
	)

	f, err := os.OpenFile("benchmark.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
	}
}

// Snapshot сохраняет в PNG один кадр для заданного прогресса прокрутки.
func (p *RenderProject) Snapshot(ctx context.Context, progress float64, path string) error {
	s, host, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	// Без кадров холсту нечего показать: файл не создается
	if s.Sequence.Len() == 0 {
		log.Printf("[!] Кадр не сохранен: источник пуст")
		return nil
	}

	state, err := s.Show(ctx, host, progress)
	if err != nil {
		return err
	}
	if state != cache.Loaded {
		log.Printf("[!] Кадр %d не загружен (%s)", s.Driver.Target(), state)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, s.Frame()); err != nil {
		f.Close()
		return fmt.Errorf("ошибка записи PNG: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("[+++] Кадр %d сохранен: %s\n", s.Driver.Target(), path)
	return nil
}
