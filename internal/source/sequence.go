package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sequence — упорядоченный неизменяемый список идентификаторов кадров
// (URL, путь к файлу или страница PDF). Индексы непрерывны: [0, Len()).
type Sequence struct {
	frames []string
	tmpDir string
}

// NewSequence копирует frames, поэтому вызывающий код может менять свой срез.
func NewSequence(frames []string) *Sequence {
	cp := make([]string, len(frames))
	copy(cp, frames)
	return &Sequence{frames: cp}
}

func (s *Sequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

func (s *Sequence) At(i int) string {
	return s.frames[i]
}

// Frames возвращает копию списка кадров.
func (s *Sequence) Frames() []string {
	if s == nil {
		return nil
	}
	cp := make([]string, len(s.frames))
	copy(cp, s.frames)
	return cp
}

// Key идентифицирует последовательность: смена ключа означает смену источника.
func (s *Sequence) Key() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.frames, "|")
}

// Close удаляет кадры, извлеченные из видео во временную папку.
func (s *Sequence) Close() error {
	if s == nil || s.tmpDir == "" {
		return nil
	}
	dir := s.tmpDir
	s.tmpDir = ""
	return os.RemoveAll(dir)
}

// Template описывает нумерованную серию: Base + pad(i, PadSize) + ".jpg", i ∈ [Start, End].
type Template struct {
	Base    string
	Start   int
	End     int
	PadSize int
}

// URLs генерирует End-Start+1 адресов. При End < Start список пуст.
func (t Template) URLs() []string {
	if t.End < t.Start {
		return nil
	}
	size := t.PadSize
	if size <= 0 {
		size = 3
	}
	urls := make([]string, 0, t.End-t.Start+1)
	for i := t.Start; i <= t.End; i++ {
		urls = append(urls, t.Base+pad(i, size)+".jpg")
	}
	return urls
}

// pad дополняет число нулями слева до size знаков. Отрицательные числа
// сохраняют знак перед нулями.
func pad(num, size int) string {
	if num < 0 {
		return "-" + pad(-num, size)
	}
	s := strconv.Itoa(num)
	if len(s) >= size {
		return s
	}
	return strings.Repeat("0", size-len(s)) + s
}

// PageID формирует идентификатор страницы PDF: "doc.pdf#3".
func PageID(path string, page int) string {
	return fmt.Sprintf("%s#%d", path, page)
}

// parsePageID разбирает идентификатор страницы PDF.
func parsePageID(id string) (string, int, bool) {
	hash := strings.LastIndexByte(id, '#')
	if hash < 0 {
		return "", 0, false
	}
	path := id[:hash]
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return "", 0, false
	}
	page, err := strconv.Atoi(id[hash+1:])
	if err != nil || page < 0 {
		return "", 0, false
	}
	return path, page, true
}
