package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hero.yaml")
	data := []byte(`
sequence:
  template:
    base: https://cdn.example.com/3-
    end: 120
  video:
    url: hero.mp4
width: 1920
height: 1080
dpr: 2
window: 8
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tpl := cfg.Sequence.Template
	if tpl == nil {
		t.Fatal("Expected template to be parsed")
	}
	if tpl.First() != 1 || tpl.PadSize != DefaultPadSize {
		t.Errorf("Expected template defaults start=1 pad=3, got start=%d pad=%d", tpl.First(), tpl.PadSize)
	}
	if cfg.Sequence.Video.Count != DefaultVideoCount || cfg.Sequence.Video.Quality != DefaultVideoQuality {
		t.Errorf("Expected video defaults, got %+v", cfg.Sequence.Video)
	}
	if cfg.Width != 1920 || cfg.Height != 1080 || cfg.DPR != 2 {
		t.Errorf("Unexpected surface %dx%d@%f", cfg.Width, cfg.Height, cfg.DPR)
	}
	if cfg.Window != 8 {
		t.Errorf("Expected window 8, got %d", cfg.Window)
	}
	// Не заданные в файле значения берутся из Defaults
	if cfg.Prime != DefaultPrime || cfg.PxPerFrame != DefaultPxPerFrame {
		t.Errorf("Expected defaults for prime/px_per_frame, got %d/%f", cfg.Prime, cfg.PxPerFrame)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hero.toml")
	data := []byte(`
fps = 60
reduced_motion = true

[sequence]
frames = ["a.jpg", "b.jpg"]

[overlay]
title = "Welcome"
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FPS != 60 || !cfg.ReducedMotion {
		t.Errorf("Unexpected fps/reduced motion: %d/%v", cfg.FPS, cfg.ReducedMotion)
	}
	if len(cfg.Sequence.Frames) != 2 {
		t.Errorf("Expected 2 frames, got %d", len(cfg.Sequence.Frames))
	}
	if cfg.Overlay.Title != "Welcome" {
		t.Errorf("Expected overlay title, got %q", cfg.Overlay.Title)
	}
}

func TestLoadKeepsExplicitTemplateStart(t *testing.T) {
	tests := []struct {
		file      string
		data      string
		wantStart int
		wantEnd   int
	}{
		{"zero.yaml", "sequence:\n  template:\n    base: f-\n    start: 0\n    end: 4\n", 0, 4},
		{"zero.toml", "[sequence.template]\nbase = \"f-\"\nstart = 0\nend = 4\n", 0, 4},
		{"zero-end.yaml", "sequence:\n  template:\n    base: f-\n    start: 0\n    end: 0\n", 0, 0},
		{"missing.yaml", "sequence:\n  template:\n    base: f-\n    end: 4\n", 1, 4},
		{"missing.toml", "[sequence.template]\nbase = \"f-\"\nend = 4\n", 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tpl := cfg.Sequence.Template
			if tpl == nil || tpl.Start == nil {
				t.Fatalf("Expected template with start, got %+v", tpl)
			}
			if tpl.First() != tt.wantStart || tpl.End != tt.wantEnd {
				t.Errorf("Expected start=%d end=%d, got start=%d end=%d", tt.wantStart, tt.wantEnd, tpl.First(), tpl.End)
			}
		})
	}
}

func TestTemplateFirstWithoutStart(t *testing.T) {
	var nilTpl *Template
	if got := nilTpl.First(); got != DefaultTemplateStart {
		t.Errorf("nil template: expected %d, got %d", DefaultTemplateStart, got)
	}
	if got := (&Template{Base: "x"}).First(); got != DefaultTemplateStart {
		t.Errorf("Template without start: expected %d, got %d", DefaultTemplateStart, got)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Width != DefaultWidth || cfg.Window != DefaultWindow {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero width", func(c *Config) { c.Width = 0 }, true},
		{"zero fps", func(c *Config) { c.FPS = 0 }, true},
		{"negative window", func(c *Config) { c.Window = -1 }, true},
		{"zero px per frame", func(c *Config) { c.PxPerFrame = 0 }, true},
		{"template without base", func(c *Config) { c.Sequence.Template = &Template{End: 3} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
