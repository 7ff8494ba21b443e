package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Loader декодирует один кадр по идентификатору: http(s) URL, страница PDF
// ("doc.pdf#N") или путь к файлу.
type Loader struct {
	Client *http.Client
	DPI    int
}

func NewLoader(dpi int) *Loader {
	return &Loader{Client: http.DefaultClient, DPI: dpi}
}

// Load прерывается при отмене ctx: HTTP-запрос привязан к контексту.
func (l *Loader) Load(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://"):
		return l.loadHTTP(ctx, id)
	default:
		if path, page, ok := parsePageID(id); ok {
			return l.loadPage(ctx, path, page)
		}
		return loadFile(id)
	}
}

func (l *Loader) loadHTTP(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

func (l *Loader) loadPage(ctx context.Context, path string, page int) (image.Image, error) {
	// Документ открывается на каждую загрузку: go-fitz не потокобезопасен
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	dpi := l.DPI
	if dpi <= 0 {
		dpi = 150
	}
	img, err := doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render %s page %d: %w", path, page, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

func loadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
