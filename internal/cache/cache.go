// Package cache holds decoded frames addressed by index.
//
// Frames are requested lazily through a look-ahead window and decoded on
// goroutines bounded by a weighted semaphore. The cache is the only writer of
// entry state and the only owner of decoded bitmaps.
package cache

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ivlev/framescroll/internal/system"
)

// State of a single cache entry.
type State int

const (
	NotRequested State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not-requested"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loader decodes one frame identifier.
type Loader interface {
	Load(ctx context.Context, id string) (image.Image, error)
}

// Event is emitted once per completed load.
type Event struct {
	Index int
	State State
	// First is set on the first successful load of the cache lifetime.
	First bool
}

// Stats is a point-in-time summary of entry states.
type Stats struct {
	Total     int
	Requested int
	Loading   int
	Loaded    int
	Failed    int
}

type Options struct {
	// MaxConcurrent bounds loads in flight. Zero means 4.
	MaxConcurrent int
	// Pool receives bitmaps released by the cache. Nil means the shared pool.
	Pool *system.ImagePool
}

type entry struct {
	state State
	img   *image.RGBA
	done  chan struct{}
}

// Cache is safe for concurrent use.
type Cache struct {
	frames []string
	loader Loader
	sem    *semaphore.Weighted
	pool   *system.ImagePool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	entries   []entry
	closed    bool
	loaded    int
	requested int
	subs      map[int]func(Event)
	nextSub   int
}

func New(frames []string, loader Loader, opts Options) *Cache {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	pool := opts.Pool
	if pool == nil {
		pool = system.DefaultPool()
	}

	c := &Cache{
		frames:  append([]string(nil), frames...),
		loader:  loader,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		pool:    pool,
		entries: make([]entry, len(frames)),
		subs:    make(map[int]func(Event)),
	}
	for i := range c.entries {
		c.entries[i].done = make(chan struct{})
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

func (c *Cache) Len() int {
	return len(c.frames)
}

// EnsureAhead requests every NotRequested index in [center, center+window],
// clamped to the sequence bounds. Entries that are loading, loaded or failed
// are left alone, so a frame is never requested twice.
func (c *Cache) EnsureAhead(center, window int) {
	n := len(c.frames)
	if n == 0 {
		return
	}
	if center < 0 {
		center = 0
	}
	if window < 0 {
		window = 0
	}
	last := center + window
	if last > n-1 {
		last = n - 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for i := center; i <= last; i++ {
		if c.entries[i].state != NotRequested {
			continue
		}
		c.entries[i].state = Loading
		c.requested++
		c.wg.Add(1)
		go c.load(i)
	}
}

func (c *Cache) load(i int) {
	defer c.wg.Done()

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		// Cache closed while waiting for a slot
		return
	}
	img, err := c.loader.Load(c.ctx, c.frames[i])
	c.sem.Release(1)

	var rgba *image.RGBA
	if err == nil {
		rgba = c.toRGBA(img)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.pool.Put(rgba)
		return
	}

	ev := Event{Index: i}
	if err != nil {
		c.entries[i].state = Failed
		ev.State = Failed
		log.Printf("[!] Кадр %d (%s) не загружен: %v", i, c.frames[i], err)
	} else {
		c.entries[i].state = Loaded
		c.entries[i].img = rgba
		c.loaded++
		ev.State = Loaded
		ev.First = c.loaded == 1
	}
	close(c.entries[i].done)
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// toRGBA copies the decoded frame into a pooled bitmap rooted at (0,0).
func (c *Cache) toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := c.pool.Get(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func (c *Cache) subscribers() []func(Event) {
	subs := make([]func(Event), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

// Subscribe registers fn for load completions. Callbacks run on the loading
// goroutine, outside the cache lock.
func (c *Cache) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Get returns the decoded frame at i if it is loaded.
func (c *Cache) Get(i int) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || i < 0 || i >= len(c.entries) || c.entries[i].state != Loaded {
		return nil, false
	}
	return c.entries[i].img, true
}

func (c *Cache) State(i int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.entries) {
		return NotRequested
	}
	return c.entries[i].state
}

// Await blocks until entry i has finished loading. It does not request the
// frame: callers pair it with EnsureAhead.
func (c *Cache) Await(ctx context.Context, i int) (State, error) {
	if i < 0 || i >= len(c.entries) {
		return NotRequested, fmt.Errorf("frame %d out of range [0,%d)", i, len(c.entries))
	}

	c.mu.Lock()
	state := c.entries[i].state
	done := c.entries[i].done
	c.mu.Unlock()

	if state == NotRequested {
		return state, fmt.Errorf("frame %d was not requested", i)
	}
	select {
	case <-done:
		return c.State(i), nil
	case <-ctx.Done():
		return Loading, ctx.Err()
	case <-c.ctx.Done():
		return Loading, fmt.Errorf("cache closed")
	}
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{Total: len(c.entries), Requested: c.requested}
	for _, e := range c.entries {
		switch e.state {
		case Loading:
			st.Loading++
		case Loaded:
			st.Loaded++
		case Failed:
			st.Failed++
		}
	}
	return st
}

// Close aborts loads in flight, releases every bitmap and drops subscribers.
// Loads finishing afterwards change nothing. Close does not wait for them;
// use Wait for that.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = make(map[int]func(Event))
	for i := range c.entries {
		if c.entries[i].img != nil {
			c.pool.Put(c.entries[i].img)
			c.entries[i].img = nil
		}
	}
	c.mu.Unlock()

	c.cancel()
}

// Wait blocks until every started load goroutine has returned.
func (c *Cache) Wait() {
	c.wg.Wait()
}
