package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/framescroll/internal/config"
	"github.com/ivlev/framescroll/internal/system"
	"github.com/ivlev/framescroll/internal/video"
)

// Extractor раскладывает видео на отдельные кадры в папку dir.
type Extractor interface {
	Extract(ctx context.Context, url string, opts video.Options, dir string, onProgress func(float64)) ([]string, error)
}

// Resolve строит последовательность кадров. Приоритет источников:
// явный список, шаблон, видео, папка с изображениями, PDF.
// Если источник не задан, возвращается пустая последовательность без ошибки.
func Resolve(ctx context.Context, cfg config.Sequence, ex Extractor, onProgress func(float64)) (*Sequence, error) {
	switch {
	case len(cfg.Frames) > 0:
		return NewSequence(cfg.Frames), nil

	case cfg.Template != nil && cfg.Template.Base != "":
		t := Template{
			Base:    cfg.Template.Base,
			Start:   cfg.Template.First(),
			End:     cfg.Template.End,
			PadSize: cfg.Template.PadSize,
		}
		return NewSequence(t.URLs()), nil

	case cfg.Video != nil && cfg.Video.URL != "" && ex != nil:
		return resolveVideo(ctx, cfg.Video, ex, onProgress)

	case cfg.Dir != "":
		frames, err := listImages(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return NewSequence(frames), nil

	case cfg.PDF != "":
		frames, err := listPages(cfg.PDF)
		if err != nil {
			return nil, err
		}
		return NewSequence(frames), nil
	}

	return NewSequence(nil), nil
}

func resolveVideo(ctx context.Context, v *config.Video, ex Extractor, onProgress func(float64)) (*Sequence, error) {
	dir, err := os.MkdirTemp("", "framescroll_")
	if err != nil {
		return nil, err
	}

	opts := video.Options{
		Count:       v.Count,
		TargetWidth: v.TargetWidth,
		Quality:     v.Quality,
	}
	frames, err := ex.Extract(ctx, v.URL, opts, dir, onProgress)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("extract frames from %s: %w", v.URL, err)
	}

	seq := NewSequence(frames)
	seq.tmpDir = dir
	return seq, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && system.IsImageFile(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func listPages(path string) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]string, n)
	for i := 0; i < n; i++ {
		pages[i] = PageID(path, i)
	}
	return pages, nil
}
