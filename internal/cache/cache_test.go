package cache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"
)

// fakeLoader counts requests per id. Ids listed in gate block until the
// corresponding channel is closed; ids in fail return an error.
type fakeLoader struct {
	mu    sync.Mutex
	calls map[string]int
	gate  map[string]chan struct{}
	fail  map[string]bool
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		calls: make(map[string]int),
		gate:  make(map[string]chan struct{}),
		fail:  make(map[string]bool),
	}
}

func (f *fakeLoader) Load(_ context.Context, id string) (image.Image, error) {
	f.mu.Lock()
	f.calls[id]++
	gate := f.gate[id]
	fail := f.fail[id]
	f.mu.Unlock()

	if gate != nil {
		// Loader ignores ctx on purpose: it models a request that cannot be aborted
		<-gate
	}
	if fail {
		return nil, errors.New("decode failed")
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 2)), nil
}

func (f *fakeLoader) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeLoader) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func frameIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("f%d", i)
	}
	return ids
}

func TestEnsureAheadWindow(t *testing.T) {
	loader := newFakeLoader()
	c := New(frameIDs(5), loader, Options{})
	defer c.Close()

	c.EnsureAhead(0, 2)
	c.Wait()

	for i := 0; i < 5; i++ {
		want := NotRequested
		if i <= 2 {
			want = Loaded
		}
		if got := c.State(i); got != want {
			t.Errorf("Frame %d: expected %s, got %s", i, want, got)
		}
	}
	if loader.total() != 3 {
		t.Errorf("Expected 3 loads, got %d", loader.total())
	}
}

func TestEnsureAheadClampsBounds(t *testing.T) {
	loader := newFakeLoader()
	c := New(frameIDs(4), loader, Options{})
	defer c.Close()

	c.EnsureAhead(2, 100)
	c.EnsureAhead(-5, 0)
	c.Wait()

	if loader.total() != 3 {
		t.Errorf("Expected frames 0, 2, 3 to load, got %d loads", loader.total())
	}
	if c.State(1) != NotRequested {
		t.Errorf("Frame 1 must not be requested, got %s", c.State(1))
	}
}

func TestNoDuplicateLoads(t *testing.T) {
	loader := newFakeLoader()
	gate := make(chan struct{})
	loader.gate["f1"] = gate

	c := New(frameIDs(6), loader, Options{})
	defer c.Close()

	c.EnsureAhead(0, 3)
	// f1 is still loading: overlapping windows must not request it again
	c.EnsureAhead(1, 2)
	c.EnsureAhead(0, 5)
	close(gate)
	c.Wait()

	// Everything loaded: more windows are no-ops
	c.EnsureAhead(0, 5)
	c.Wait()

	for _, id := range frameIDs(6) {
		if n := loader.count(id); n != 1 {
			t.Errorf("%s requested %d times", id, n)
		}
	}
}

func TestFailedIsNotRetried(t *testing.T) {
	loader := newFakeLoader()
	loader.fail["f0"] = true
	c := New(frameIDs(3), loader, Options{})
	defer c.Close()

	var mu sync.Mutex
	var events []Event
	c.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	c.EnsureAhead(0, 0)
	c.Wait()
	c.EnsureAhead(0, 0)
	c.Wait()

	if c.State(0) != Failed {
		t.Errorf("Expected Failed, got %s", c.State(0))
	}
	if loader.count("f0") != 1 {
		t.Errorf("Failed frame was retried %d times", loader.count("f0"))
	}
	if _, ok := c.Get(0); ok {
		t.Error("Failed frame must not be available")
	}
	if len(events) != 1 || events[0].State != Failed || events[0].First {
		t.Errorf("Unexpected events %+v", events)
	}
}

func TestFirstLoadSignalsReadyOnce(t *testing.T) {
	loader := newFakeLoader()
	loader.fail["f0"] = true
	c := New(frameIDs(4), loader, Options{MaxConcurrent: 1})
	defer c.Close()

	var mu sync.Mutex
	firsts := 0
	c.Subscribe(func(ev Event) {
		if ev.First {
			mu.Lock()
			firsts++
			mu.Unlock()
		}
	})

	c.EnsureAhead(0, 3)
	c.Wait()

	if firsts != 1 {
		t.Errorf("Expected exactly one ready signal, got %d", firsts)
	}
	st := c.Stats()
	if st.Loaded != 3 || st.Failed != 1 || st.Requested != 4 {
		t.Errorf("Unexpected stats %+v", st)
	}
}

func TestOutOfOrderCompletion(t *testing.T) {
	loader := newFakeLoader()
	gate := make(chan struct{})
	loader.gate["f0"] = gate
	c := New(frameIDs(3), loader, Options{})
	defer c.Close()

	c.EnsureAhead(0, 2)
	if _, err := c.Await(context.Background(), 2); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if c.State(0) != Loading {
		t.Errorf("Frame 0 should still be loading, got %s", c.State(0))
	}
	close(gate)

	state, err := c.Await(context.Background(), 0)
	if err != nil || state != Loaded {
		t.Errorf("Await(0) = %s, %v", state, err)
	}
	img, ok := c.Get(0)
	if !ok || img.Bounds().Dx() != 4 {
		t.Errorf("Expected loaded 4x2 frame, got %v %v", img, ok)
	}
}

func TestAwaitErrors(t *testing.T) {
	loader := newFakeLoader()
	gate := make(chan struct{})
	defer close(gate)
	loader.gate["f0"] = gate
	c := New(frameIDs(2), loader, Options{})
	defer c.Close()

	if _, err := c.Await(context.Background(), 5); err == nil {
		t.Error("Expected out of range error")
	}
	if _, err := c.Await(context.Background(), 1); err == nil {
		t.Error("Expected error for a frame that was never requested")
	}

	c.EnsureAhead(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Await(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestCloseDuringInFlightLoad(t *testing.T) {
	loader := newFakeLoader()
	gate := make(chan struct{})
	loader.gate["f0"] = gate
	c := New(frameIDs(2), loader, Options{})

	events := 0
	var mu sync.Mutex
	c.Subscribe(func(Event) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	c.EnsureAhead(0, 0)
	c.Close()
	close(gate)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if events != 0 {
		t.Errorf("Late load emitted %d events after Close", events)
	}
	if c.State(0) != Loading {
		t.Errorf("Late load mutated state to %s", c.State(0))
	}
	if _, ok := c.Get(0); ok {
		t.Error("Closed cache must not return frames")
	}

	// Closed cache ignores new requests
	c.EnsureAhead(1, 0)
	c.Wait()
	if loader.count("f1") != 0 {
		t.Error("Closed cache started a new load")
	}
}

func TestUnsubscribe(t *testing.T) {
	loader := newFakeLoader()
	c := New(frameIDs(2), loader, Options{})
	defer c.Close()

	calls := 0
	cancel := c.Subscribe(func(Event) { calls++ })
	cancel()
	cancel()

	c.EnsureAhead(0, 1)
	c.Wait()
	if calls != 0 {
		t.Errorf("Unsubscribed callback called %d times", calls)
	}
}

func TestEmptyCache(t *testing.T) {
	c := New(nil, newFakeLoader(), Options{})
	defer c.Close()

	c.EnsureAhead(0, 10)
	c.Wait()
	if c.Len() != 0 || c.Stats().Requested != 0 {
		t.Errorf("Empty cache should never request frames, stats %+v", c.Stats())
	}
}
