package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Template описывает нумерованную серию кадров: Base + pad(i) + ".jpg".
// Start == nil означает, что ключ не задан: нумерация с 1. Явный 0 сохраняется.
type Template struct {
	Base    string `yaml:"base" toml:"base"`
	Start   *int   `yaml:"start" toml:"start"`
	End     int    `yaml:"end" toml:"end"`
	PadSize int    `yaml:"pad_size" toml:"pad_size"`
}

// First возвращает номер первого кадра серии.
func (t *Template) First() int {
	if t == nil || t.Start == nil {
		return DefaultTemplateStart
	}
	return *t.Start
}

// Video описывает извлечение кадров из видеофайла.
type Video struct {
	URL         string  `yaml:"url" toml:"url"`
	Count       int     `yaml:"count" toml:"count"`
	TargetWidth int     `yaml:"target_width" toml:"target_width"`
	Quality     float64 `yaml:"quality" toml:"quality"`
}

// Sequence — источник кадров. Приоритет: Frames, Template, Video, Dir, PDF.
type Sequence struct {
	Frames   []string  `yaml:"frames" toml:"frames"`
	Template *Template `yaml:"template" toml:"template"`
	Video    *Video    `yaml:"video" toml:"video"`
	Dir      string    `yaml:"dir" toml:"dir"`
	PDF      string    `yaml:"pdf" toml:"pdf"`
	DPI      int       `yaml:"dpi" toml:"dpi"`
}

type Overlay struct {
	Title    string `yaml:"title" toml:"title"`
	Subtitle string `yaml:"subtitle" toml:"subtitle"`
	QRLink   string `yaml:"qr_link" toml:"qr_link"`
}

type Config struct {
	Sequence Sequence `yaml:"sequence" toml:"sequence"`
	Overlay  Overlay  `yaml:"overlay" toml:"overlay"`

	// Поверхность в CSS-пикселях и плотность пикселей
	Width  int     `yaml:"width" toml:"width"`
	Height int     `yaml:"height" toml:"height"`
	DPR    float64 `yaml:"dpr" toml:"dpr"`

	// Поведение прокрутки
	Window        int     `yaml:"window" toml:"window"`
	Prime         int     `yaml:"prime" toml:"prime"`
	PxPerFrame    float64 `yaml:"px_per_frame" toml:"px_per_frame"`
	ZoomFrom      float64 `yaml:"zoom_from" toml:"zoom_from"`
	ZoomTo        float64 `yaml:"zoom_to" toml:"zoom_to"`
	ReducedMotion bool    `yaml:"reduced_motion" toml:"reduced_motion"`
	MaxConcurrent int     `yaml:"max_concurrent" toml:"max_concurrent"`
	Interpolator  string  `yaml:"interpolator" toml:"interpolator"`

	// Запись видео
	OutputVideo  string  `yaml:"output" toml:"output"`
	ScriptPath   string  `yaml:"script" toml:"script"`
	Duration     float64 `yaml:"duration" toml:"duration"`
	FPS          int     `yaml:"fps" toml:"fps"`
	VideoEncoder string  `yaml:"encoder" toml:"encoder"`
	Quality      int     `yaml:"quality" toml:"quality"`
	ShowStats    bool    `yaml:"stats" toml:"stats"`
	BuildVersion string  `yaml:"-" toml:"-"`
}

// Значения по умолчанию совпадают с поведением исходного сайта:
// 12 кадров вперед, 16 при старте, 6px прокрутки на кадр.
const (
	DefaultWidth         = 1280
	DefaultHeight        = 720
	DefaultDPR           = 1
	DefaultWindow        = 12
	DefaultPrime         = 16
	DefaultPxPerFrame    = 6
	DefaultFPS           = 30
	DefaultDuration      = 6
	DefaultVideoCount    = 180
	DefaultTargetWidth   = 1440
	DefaultVideoQuality  = 0.85
	DefaultPadSize       = 3
	DefaultTemplateStart = 1
	DefaultDPI           = 150
)

// Defaults возвращает конфигурацию без источника кадров.
func Defaults() *Config {
	return &Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		DPR:        DefaultDPR,
		Window:     DefaultWindow,
		Prime:      DefaultPrime,
		PxPerFrame: DefaultPxPerFrame,
		ZoomFrom:   1,
		ZoomTo:     1,
		FPS:        DefaultFPS,
		Duration:   DefaultDuration,
		Sequence:   Sequence{DPI: DefaultDPI},
	}
}

// Load читает YAML или TOML (по расширению) поверх значений по умолчанию.
// Пустой путь возвращает Defaults().
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config %s not found", resolved)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults заполняет нулевые значения, оставшиеся после разбора файла.
func (c *Config) applyDefaults() {
	if c.Sequence.Template != nil {
		if c.Sequence.Template.Start == nil {
			start := DefaultTemplateStart
			c.Sequence.Template.Start = &start
		}
		if c.Sequence.Template.PadSize <= 0 {
			c.Sequence.Template.PadSize = DefaultPadSize
		}
	}
	if v := c.Sequence.Video; v != nil {
		if v.Count <= 0 {
			v.Count = DefaultVideoCount
		}
		if v.TargetWidth <= 0 {
			v.TargetWidth = DefaultTargetWidth
		}
		if v.Quality <= 0 {
			v.Quality = DefaultVideoQuality
		}
	}
	if c.Sequence.DPI <= 0 {
		c.Sequence.DPI = DefaultDPI
	}
	if c.ZoomFrom <= 0 {
		c.ZoomFrom = 1
	}
	if c.ZoomTo <= 0 {
		c.ZoomTo = 1
	}
	for _, p := range []*string{&c.Sequence.Dir, &c.Sequence.PDF, &c.ScriptPath, &c.OutputVideo} {
		if strings.HasPrefix(*p, "~") {
			if expanded, err := expandPath(*p); err == nil {
				*p = expanded
			}
		}
	}
}

// Validate проверяет значения, при которых рендер невозможен.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	if c.Window < 0 || c.Prime < 0 {
		return fmt.Errorf("look-ahead window must not be negative")
	}
	if c.PxPerFrame <= 0 {
		return fmt.Errorf("px_per_frame must be positive, got %f", c.PxPerFrame)
	}
	if t := c.Sequence.Template; t != nil && t.Base == "" && len(c.Sequence.Frames) == 0 {
		return fmt.Errorf("template requires base")
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
