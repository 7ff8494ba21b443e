package effects

import (
	"math"
	"testing"
)

func TestZoomAt(t *testing.T) {
	z := Zoom{From: 1.12, To: 1}
	tests := []struct {
		progress float64
		want     float64
	}{
		{0, 1.12},
		{0.5, 1.06},
		{1, 1},
		{-1, 1.12},
		{2, 1},
	}

	for _, tt := range tests {
		if got := z.ZoomAt(tt.progress); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ZoomAt(%v) = %v, want %v", tt.progress, got, tt.want)
		}
	}
}

func TestNewReturnsNoneForIdentity(t *testing.T) {
	if _, ok := New(1, 1).(None); !ok {
		t.Error("Expected None for constant zoom 1")
	}
	if _, ok := New(0, 0).(None); !ok {
		t.Error("Expected None for unset zoom")
	}
	if _, ok := New(1.12, 1).(Zoom); !ok {
		t.Error("Expected Zoom for 1.12 -> 1")
	}
}

func TestOverlayAt(t *testing.T) {
	start := OverlayAt(0)
	if start.Opacity != 0.95 || start.OffsetY != 0 {
		t.Errorf("Unexpected start style %+v", start)
	}
	end := OverlayAt(1)
	if math.Abs(end.Opacity-0.35) > 1e-9 || end.OffsetY != -40 {
		t.Errorf("Unexpected end style %+v", end)
	}
	if OverlayAt(math.NaN()) != start {
		t.Error("NaN progress must behave like 0")
	}
}
