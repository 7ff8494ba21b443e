package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/framescroll/internal/config"
	"github.com/ivlev/framescroll/internal/video"
)

func TestTemplateURLs(t *testing.T) {
	tests := []struct {
		tpl   Template
		first string
		last  string
		count int
	}{
		{Template{Base: "https://cdn/3-", Start: 1, End: 120, PadSize: 3}, "https://cdn/3-001.jpg", "https://cdn/3-120.jpg", 120},
		{Template{Base: "f", Start: 0, End: 9, PadSize: 4}, "f0000.jpg", "f0009.jpg", 10},
		{Template{Base: "f", Start: 998, End: 1001, PadSize: 3}, "f998.jpg", "f1001.jpg", 4},
		{Template{Base: "f", Start: 5, End: 5}, "f005.jpg", "f005.jpg", 1},
	}

	for _, tt := range tests {
		urls := tt.tpl.URLs()
		if len(urls) != tt.tpl.End-tt.tpl.Start+1 || len(urls) != tt.count {
			t.Errorf("%+v: expected %d urls, got %d", tt.tpl, tt.count, len(urls))
			continue
		}
		if urls[0] != tt.first || urls[len(urls)-1] != tt.last {
			t.Errorf("%+v: got first=%s last=%s", tt.tpl, urls[0], urls[len(urls)-1])
		}
	}
}

func TestTemplateURLsFormat(t *testing.T) {
	for padSize := 1; padSize <= 5; padSize++ {
		tpl := Template{Base: "b/", Start: 1, End: 150, PadSize: padSize}
		for i, u := range tpl.URLs() {
			want := fmt.Sprintf("b/%0*d.jpg", padSize, tpl.Start+i)
			if u != want {
				t.Fatalf("pad %d index %d: got %s, want %s", padSize, i, u, want)
			}
		}
	}
}

func TestTemplateEmptyRange(t *testing.T) {
	if urls := (Template{Base: "x", Start: 5, End: 4}).URLs(); len(urls) != 0 {
		t.Errorf("Expected empty list, got %d", len(urls))
	}
}

type stubExtractor struct {
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ string, opts video.Options, dir string, onProgress func(float64)) ([]string, error) {
	s.calls++
	var frames []string
	for i := 0; i < opts.Count; i++ {
		frames = append(frames, filepath.Join(dir, fmt.Sprintf("frame_%04d.jpg", i)))
		if onProgress != nil {
			onProgress(float64(i+1) / float64(opts.Count))
		}
	}
	return frames, nil
}

func TestResolveTemplateFromZero(t *testing.T) {
	start := 0
	cfg := config.Sequence{Template: &config.Template{Base: "f-", Start: &start, End: 4, PadSize: 3}}

	seq, err := Resolve(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if seq.Len() != 5 || seq.At(0) != "f-000.jpg" || seq.At(4) != "f-004.jpg" {
		t.Errorf("Expected f-000..f-004, got %v", seq.Frames())
	}
}

func TestResolvePrecedence(t *testing.T) {
	ctx := context.Background()
	ex := &stubExtractor{}

	cfg := config.Sequence{
		Frames:   []string{"a.jpg", "b.jpg"},
		Template: &config.Template{Base: "t", End: 10, PadSize: 3},
		Video:    &config.Video{URL: "hero.mp4", Count: 4},
	}

	seq, err := Resolve(ctx, cfg, ex, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if seq.Len() != 2 || seq.At(0) != "a.jpg" {
		t.Errorf("Explicit list must win, got %v", seq.Frames())
	}

	cfg.Frames = nil
	seq, _ = Resolve(ctx, cfg, ex, nil)
	if seq.Len() != 10 || seq.At(0) != "t001.jpg" {
		t.Errorf("Template must win over video, got %v", seq.Frames())
	}
	if ex.calls != 0 {
		t.Errorf("Extractor must not run when a list or template resolves, got %d calls", ex.calls)
	}
}

func TestResolveVideo(t *testing.T) {
	ex := &stubExtractor{}
	var last float64
	cfg := config.Sequence{Video: &config.Video{URL: "hero.mp4", Count: 5}}

	seq, err := Resolve(context.Background(), cfg, ex, func(p float64) { last = p })
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if seq.Len() != 5 {
		t.Errorf("Expected 5 frames, got %d", seq.Len())
	}
	if last != 1 {
		t.Errorf("Expected final progress 1, got %f", last)
	}

	dir := filepath.Dir(seq.At(0))
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Expected temp dir to exist: %v", err)
	}
	if err := seq.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Expected temp dir to be removed, stat err = %v", err)
	}
}

func TestResolveNothing(t *testing.T) {
	seq, err := Resolve(context.Background(), config.Sequence{}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if seq.Len() != 0 {
		t.Errorf("Expected empty sequence, got %d", seq.Len())
	}
}

func TestResolveDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.png", "001.jpg", "readme.md", "003.webp"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}

	seq, err := Resolve(context.Background(), config.Sequence{Dir: dir}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := []string{"001.jpg", "002.png", "003.webp"}
	if seq.Len() != len(want) {
		t.Fatalf("Expected %d frames, got %v", len(want), seq.Frames())
	}
	for i, name := range want {
		if filepath.Base(seq.At(i)) != name {
			t.Errorf("Frame %d: expected %s, got %s", i, name, seq.At(i))
		}
	}
}

func TestParsePageID(t *testing.T) {
	tests := []struct {
		id   string
		path string
		page int
		ok   bool
	}{
		{PageID("deck.pdf", 3), "deck.pdf", 3, true},
		{"dir/Deck.PDF#0", "dir/Deck.PDF", 0, true},
		{"image.jpg#1", "", 0, false},
		{"deck.pdf#x", "", 0, false},
		{"deck.pdf", "", 0, false},
	}

	for _, tt := range tests {
		path, page, ok := parsePageID(tt.id)
		if ok != tt.ok || path != tt.path || page != tt.page {
			t.Errorf("parsePageID(%q) = (%q, %d, %v), want (%q, %d, %v)", tt.id, path, page, ok, tt.path, tt.page, tt.ok)
		}
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoaderFileAndHTTP(t *testing.T) {
	data := encodePNG(t, 4, 3)

	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	loader := NewLoader(0)
	ctx := context.Background()

	for _, id := range []string{path, srv.URL + "/frame.png"} {
		img, err := loader.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", id, err)
		}
		if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
			t.Errorf("Load(%s): unexpected bounds %v", id, img.Bounds())
		}
	}

	if _, err := loader.Load(ctx, srv.URL+"/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := loader.Load(cancelled, path); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
