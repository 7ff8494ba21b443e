package driver

import (
	"sync"
)

// ScriptedHost is a Host driven programmatically: the renderer feeds it
// offsets from a timeline, tests feed it whatever they need.
type ScriptedHost struct {
	mu      sync.Mutex
	w, h    float64
	dpr     float64
	reduced bool
	pinned  float64
	pins    int
	nextID  int
	scrolls map[int]func(float64)
	resizes map[int]func(w, h, dpr float64)
}

func NewScriptedHost(w, h, dpr float64, reducedMotion bool) *ScriptedHost {
	return &ScriptedHost{
		w:       w,
		h:       h,
		dpr:     dpr,
		reduced: reducedMotion,
		scrolls: make(map[int]func(float64)),
		resizes: make(map[int]func(w, h, dpr float64)),
	}
}

func (s *ScriptedHost) PrefersReducedMotion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reduced
}

func (s *ScriptedHost) Size() (float64, float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h, s.dpr
}

func (s *ScriptedHost) Pin(distance float64) func() {
	s.mu.Lock()
	s.pinned = distance
	s.pins++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.pins--
			if s.pins == 0 {
				s.pinned = 0
			}
			s.mu.Unlock()
		})
	}
}

func (s *ScriptedHost) OnScroll(fn func(offset float64)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.scrolls[id] = fn
	return s.remover(func() { delete(s.scrolls, id) })
}

func (s *ScriptedHost) OnResize(fn func(w, h, dpr float64)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.resizes[id] = fn
	return s.remover(func() { delete(s.resizes, id) })
}

func (s *ScriptedHost) remover(del func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			del()
			s.mu.Unlock()
		})
	}
}

// Scroll delivers offset to every scroll listener.
func (s *ScriptedHost) Scroll(offset float64) {
	s.mu.Lock()
	fns := make([]func(float64), 0, len(s.scrolls))
	for _, fn := range s.scrolls {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(offset)
	}
}

// ScrollToProgress scrolls to progress*distance of the current pin.
func (s *ScriptedHost) ScrollToProgress(progress float64) {
	s.Scroll(progress * s.Pinned())
}

// Resize changes the surface size and notifies resize listeners.
func (s *ScriptedHost) Resize(w, h, dpr float64) {
	s.mu.Lock()
	s.w, s.h, s.dpr = w, h, dpr
	fns := make([]func(float64, float64, float64), 0, len(s.resizes))
	for _, fn := range s.resizes {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(w, h, dpr)
	}
}

// Pinned is the active pin distance, zero when nothing is pinned.
func (s *ScriptedHost) Pinned() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// Listeners reports the number of attached scroll and resize listeners.
func (s *ScriptedHost) Listeners() (scroll, resize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scrolls), len(s.resizes)
}
