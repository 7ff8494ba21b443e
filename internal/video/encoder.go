package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
)

// StreamParams — параметры выходного видео.
type StreamParams struct {
	Width, Height int
	FPS           int
	Encoder       string
	Quality       int
}

// StreamEncoder принимает кадры RGBA и передает их в FFmpeg через stdin.
type StreamEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    bytes.Buffer
	params StreamParams
	frames int
}

func NewStreamEncoder(ctx context.Context, videoPath string, params StreamParams) (*StreamEncoder, error) {
	if params.Encoder == "" {
		params.Encoder = "libx264"
	}
	e := &StreamEncoder{params: params}
	e.cmd = exec.CommandContext(ctx, "ffmpeg", buildStreamArgs(videoPath, params)...)
	e.cmd.Stdout = &e.out
	e.cmd.Stderr = &e.out

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return e, nil
}

func buildStreamArgs(videoPath string, params StreamParams) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", fmt.Sprintf("%d", params.FPS),
		"-i", "-",
		// yuv420p требует четных размеров
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", params.Encoder,
	}

	// Качество в зависимости от энкодера
	switch params.Encoder {
	case "h264_videotoolbox":
		bitrate := params.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", params.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", params.Quality), "-preset", "medium")
	}

	return append(args, videoPath)
}

// WriteFrame записывает один кадр. Размер кадра должен совпадать с StreamParams.
func (e *StreamEncoder) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != e.params.Width || b.Dy() != e.params.Height {
		return fmt.Errorf("frame %d: size %dx%d, encoder expects %dx%d",
			e.frames, b.Dx(), b.Dy(), e.params.Width, e.params.Height)
	}
	if err := writeRawRGBA(e.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	e.frames++
	return nil
}

// Frames возвращает число записанных кадров.
func (e *StreamEncoder) Frames() int {
	return e.frames
}

// Close закрывает stdin и ждет завершения FFmpeg.
func (e *StreamEncoder) Close() error {
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w\nLog: %s", err, e.out.String())
	}
	return nil
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	// Проверяем, является ли изображение уже RGBA со стандартным шагом (stride)
	if !ok || rgba.Stride != bounds.Dx()*4 || len(rgba.Pix) != bounds.Dx()*bounds.Dy()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
