package timeline

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Script describes how the scroll position changes over time when the
// sequence is rendered without a user: a list of progress keyframes.
type Script struct {
	Version   string     `yaml:"version"`
	Duration  float64    `yaml:"duration"` // Total duration in seconds
	FPS       int        `yaml:"fps"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// Keyframe pins the scroll progress at a moment in time
type Keyframe struct {
	Time     float64 `yaml:"time"`           // Time offset in seconds
	Progress float64 `yaml:"progress"`       // Scroll progress 0..1
	Ease     string  `yaml:"ease,omitempty"` // Easing into this keyframe: linear, in-out
}

// Default scrolls from top to bottom linearly over duration.
func Default(duration float64, fps int) *Script {
	return &Script{
		Version:  "1.0",
		Duration: duration,
		FPS:      fps,
		Keyframes: []Keyframe{
			{Time: 0, Progress: 0},
			{Time: duration, Progress: 1},
		},
	}
}

// Validate sorts keyframes by time and rejects scripts that cannot be sampled.
func (s *Script) Validate() error {
	if s.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", s.FPS)
	}
	if len(s.Keyframes) == 0 {
		return fmt.Errorf("script has no keyframes")
	}
	sort.SliceStable(s.Keyframes, func(i, j int) bool {
		return s.Keyframes[i].Time < s.Keyframes[j].Time
	})
	if s.Duration <= 0 {
		s.Duration = s.Keyframes[len(s.Keyframes)-1].Time
	}
	if s.Duration <= 0 {
		return fmt.Errorf("script duration must be positive")
	}
	for _, kf := range s.Keyframes {
		if kf.Progress < 0 || kf.Progress > 1 {
			return fmt.Errorf("keyframe at %.2fs: progress %.3f outside [0,1]", kf.Time, kf.Progress)
		}
		switch kf.Ease {
		case "", "linear", "in-out":
		default:
			return fmt.Errorf("keyframe at %.2fs: unknown ease %q", kf.Time, kf.Ease)
		}
	}
	return nil
}

// FrameCount returns the number of output frames.
func (s *Script) FrameCount() int {
	return int(math.Round(s.Duration * float64(s.FPS)))
}

// Samples returns the time of every output frame.
func (s *Script) Samples() []float64 {
	n := s.FrameCount()
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / float64(s.FPS)
	}
	return times
}

// ProgressAt interpolates scroll progress at time t between keyframes.
func (s *Script) ProgressAt(t float64) float64 {
	kfs := s.Keyframes
	if len(kfs) == 0 {
		return 0
	}
	if t <= kfs[0].Time {
		return kfs[0].Progress
	}
	last := kfs[len(kfs)-1]
	if t >= last.Time {
		return last.Progress
	}

	for i := 0; i < len(kfs)-1; i++ {
		prev, next := kfs[i], kfs[i+1]
		if t < prev.Time || t >= next.Time {
			continue
		}
		delta := next.Time - prev.Time
		if delta == 0 {
			return next.Progress
		}
		f := (t - prev.Time) / delta
		if next.Ease == "in-out" {
			f = easeInOutCubic(f)
		}
		return lerp(prev.Progress, next.Progress, f)
	}
	return last.Progress
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// WriteScript writes a script to a YAML file
func WriteScript(script *Script, path string) error {
	data, err := yaml.Marshal(script)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadScript reads a script from a YAML file and validates it
func ReadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return &script, nil
}
