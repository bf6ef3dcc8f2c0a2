package pika

import (
	"math"
)

// WidthPresets are common maximum widths offered to users, in pixels.
var WidthPresets = []int{1920, 1280, 800, 400}

// Settings are the user-facing knobs shared by every image in a batch.
// They are validated by Normalize before being turned into requests.
type Settings struct {
	// Mode selects quality or target-size compression.
	Mode GoalKind

	// Quality is 1..100. In target-size mode it caps the quality searched.
	Quality int

	// TargetSizeKB is the target output size in KiB (1 KB = 1024 bytes).
	TargetSizeKB float64

	// MaxWidth and MaxHeight bound the output. Zero means unconstrained.
	MaxWidth  int
	MaxHeight int

	// LockAspect couples MaxWidth and MaxHeight when set through SetMaxWidth
	// or SetMaxHeight.
	LockAspect bool

	// Format is the output format.
	Format Format
}

// DefaultSettings returns quality mode at DefaultQuality, JPEG output and
// no dimension constraint.
func DefaultSettings() Settings {
	return Settings{
		Mode:       GoalQuality,
		Quality:    DefaultQuality,
		LockAspect: true,
		Format:     JPEG,
	}
}

// Normalize returns a copy with out-of-range values replaced by defaults.
func (s Settings) Normalize() Settings {
	if s.Mode != GoalQuality && s.Mode != GoalTargetSize {
		s.Mode = GoalQuality
	}
	if s.Quality <= 0 {
		s.Quality = DefaultQuality
	}
	s.Quality = clampQuality(s.Quality)
	if s.TargetSizeKB < 0 || math.IsNaN(s.TargetSizeKB) || math.IsInf(s.TargetSizeKB, 0) {
		s.TargetSizeKB = 0
	}
	s.MaxWidth = max(0, s.MaxWidth)
	s.MaxHeight = max(0, s.MaxHeight)
	if !s.Format.valid() {
		s.Format = JPEG
	}
	return s
}

// SetMaxWidth sets the width bound. With LockAspect set and a positive
// aspect (width / height), the height bound follows.
func (s *Settings) SetMaxWidth(w int, aspect float64) {
	s.MaxWidth = max(0, w)
	if !s.LockAspect || aspect <= 0 {
		return
	}
	if s.MaxWidth == 0 {
		s.MaxHeight = 0
		return
	}
	s.MaxHeight = max(1, int(math.Round(float64(s.MaxWidth)/aspect)))
}

// SetMaxHeight sets the height bound. With LockAspect set and a positive
// aspect (width / height), the width bound follows.
func (s *Settings) SetMaxHeight(h int, aspect float64) {
	s.MaxHeight = max(0, h)
	if !s.LockAspect || aspect <= 0 {
		return
	}
	if s.MaxHeight == 0 {
		s.MaxWidth = 0
		return
	}
	s.MaxWidth = max(1, int(math.Round(float64(s.MaxHeight)*aspect)))
}

// MaxTargetBytes bounds target sizes. Anything larger is treated as this.
const MaxTargetBytes int64 = 1 << 40

// TargetBytes converts TargetSizeKB to bytes, clamped to [1, MaxTargetBytes]
// for any positive size. Zero, negative and NaN sizes give 0.
func (s Settings) TargetBytes() int64 {
	if !(s.TargetSizeKB > 0) {
		return 0
	}
	b := s.TargetSizeKB * 1024
	if b >= float64(MaxTargetBytes) {
		return MaxTargetBytes
	}
	return max(1, int64(math.Round(b)))
}

// Request translates the settings into a compression request for src. A
// target-size mode without a positive size becomes quality mode.
func (s Settings) Request(src *Source) Request {
	s = s.Normalize()
	goal := QualityGoal(s.Quality)
	if s.Mode == GoalTargetSize && s.TargetBytes() > 0 {
		goal = TargetSizeGoal(s.TargetBytes())
		goal.Level = s.Quality
	}
	return Request{
		Source: src,
		Goal:   goal,
		Dimensions: Dimensions{
			MaxWidth:  s.MaxWidth,
			MaxHeight: s.MaxHeight,
		},
		Format: s.Format,
	}
}
