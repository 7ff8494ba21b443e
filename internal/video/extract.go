package video

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ivlev/framescroll/internal/system"
)

// Options задает извлечение кадров из видео.
type Options struct {
	Count       int     // число кадров
	TargetWidth int     // ширина кадра, высота по пропорциям
	Quality     float64 // качество JPEG, 0-1
}

const (
	defaultCount       = 180
	defaultTargetWidth = 1440
	defaultQuality     = 0.85
	fallbackWidth      = 1920
	fallbackHeight     = 1080
	// Последний кадр берется чуть раньше конца: FFmpeg не отдает кадр,
	// если -ss совпадает с длительностью.
	endGuard = 0.05
)

func (o Options) withDefaults() Options {
	if o.Count <= 0 {
		o.Count = defaultCount
	}
	if o.TargetWidth <= 0 {
		o.TargetWidth = defaultTargetWidth
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = defaultQuality
	}
	return o
}

// Timestamps возвращает count равномерно распределенных моментов от 0 до duration.
func Timestamps(duration float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	denom := count - 1
	if denom < 1 {
		denom = 1
	}
	times := make([]float64, count)
	for i := range times {
		times[i] = duration * float64(i) / float64(denom)
	}
	return times
}

// OutputSize масштабирует кадр до targetWidth с сохранением пропорций.
// Высота округляется до четного числа.
func OutputSize(srcW, srcH, targetWidth int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		srcW, srcH = fallbackWidth, fallbackHeight
	}
	scale := float64(targetWidth) / float64(srcW)
	h := int(math.Round(float64(srcH) * scale))
	if h%2 != 0 {
		h++
	}
	return targetWidth, h
}

// JPEGQuality переводит качество 0-1 в шкалу image/jpeg 1-100.
func JPEGQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// FFmpegExtractor раскладывает видео на кадры: перемотка к каждой отметке
// и захват одного кадра в RGBA через stdout FFmpeg.
type FFmpegExtractor struct {
	Probe func(ctx context.Context, path string) (system.VideoInfo, error)
	// Grab захватывает кадр в момент t; по умолчанию запускает ffmpeg.
	Grab func(ctx context.Context, url string, t float64, w, h int) (*image.RGBA, error)
}

func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{Probe: system.ProbeVideo, Grab: grabFrame}
}

// Extract сохраняет кадры в dir как JPEG и после каждого кадра вызывает
// onProgress(готово/всего). Кадр, который не удалось получить, пропускается.
// При отмене ctx возвращает уже извлеченные кадры вместе с ошибкой контекста.
func (e *FFmpegExtractor) Extract(ctx context.Context, url string, opts Options, dir string, onProgress func(float64)) ([]string, error) {
	opts = opts.withDefaults()

	info, err := e.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	w, h := OutputSize(info.Width, info.Height, opts.TargetWidth)
	times := Timestamps(info.Duration, opts.Count)
	quality := JPEGQuality(opts.Quality)

	frames := make([]string, 0, len(times))
	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		seek := math.Min(math.Max(t, 0), math.Max(info.Duration-endGuard, 0))
		img, err := e.Grab(ctx, url, seek, w, h)
		if err != nil {
			if ctx.Err() != nil {
				return frames, ctx.Err()
			}
			log.Printf("[!] Кадр %d (%.2fs) не извлечен: %v", i, seek, err)
		} else {
			path := filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i))
			if err := writeJPEG(path, img, quality); err != nil {
				log.Printf("[!] Кадр %d не сохранен: %v", i, err)
			} else {
				frames = append(frames, path)
			}
		}

		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(times)))
		}
	}

	return frames, nil
}

func grabFrame(ctx context.Context, url string, t float64, w, h int) (*image.RGBA, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", buildGrabArgs(url, t, w, h)...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg grab error: %w", err)
	}
	if len(out) != w*h*4 {
		return nil, fmt.Errorf("ffmpeg returned %d bytes, expected %d", len(out), w*h*4)
	}
	return &image.RGBA{Pix: out, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

func buildGrabArgs(url string, t float64, w, h int) []string {
	return []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%f", t),
		"-i", url,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", w, h),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
