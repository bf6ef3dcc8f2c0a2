package pika

import (
	"fmt"
	"io"
	"strings"
)

// Version is the library version.
const Version = "1.0.0"

// Format represents an output image format.
type Format int

const (
	// JPEG output, image/jpeg. The zero value.
	JPEG Format = iota
	// WebP output, image/webp.
	WebP
)

// MIME types understood by the engine.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWebP = "image/webp"
	MIMEGIF  = "image/gif"
)

func (f Format) String() string {
	switch f {
	case WebP:
		return "WebP"
	default:
		return "JPEG"
	}
}

// MIMEType returns the MIME type of blobs produced in this format.
func (f Format) MIMEType() string {
	if f == WebP {
		return MIMEWebP
	}
	return MIMEJPEG
}

// Extension returns the file extension (without dot) for this format.
func (f Format) Extension() string {
	if f == WebP {
		return "webp"
	}
	return "jpg"
}

func (f Format) valid() bool {
	return f == JPEG || f == WebP
}

// ParseFormat parses a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg", MIMEJPEG:
		return JPEG, nil
	case "webp", MIMEWebP:
		return WebP, nil
	default:
		return JPEG, fmt.Errorf("pika: unknown format %q (use jpeg or webp)", s)
	}
}

// GoalKind selects how a Goal is interpreted.
type GoalKind int

const (
	// GoalQuality encodes once at a fixed quality level.
	GoalQuality GoalKind = iota
	// GoalTargetSize searches for an output no larger than SizeBytes.
	GoalTargetSize
)

func (k GoalKind) String() string {
	switch k {
	case GoalTargetSize:
		return "targetSize"
	default:
		return "quality"
	}
}

// ParseMode parses a user supplied mode name. Dashes, underscores and case
// are ignored, so "target-size", "target_size" and "TargetSize" all match.
func ParseMode(s string) (GoalKind, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "quality":
		return GoalQuality, nil
	case "targetsize", "size":
		return GoalTargetSize, nil
	default:
		return GoalQuality, fmt.Errorf("pika: unknown mode %q (use quality or target-size)", s)
	}
}

// Goal is what the caller wants from a compression: either a fixed quality
// level (1..100) or a target output size in bytes. Exactly one is active,
// selected by Kind. On a target-size goal a non-zero Level caps the quality
// the size search starts from.
type Goal struct {
	Kind      GoalKind
	Level     int
	SizeBytes int64
}

// QualityGoal returns a goal that encodes once at level (1..100).
func QualityGoal(level int) Goal {
	return Goal{Kind: GoalQuality, Level: level}
}

// TargetSizeGoal returns a goal that aims for at most n bytes of output.
func TargetSizeGoal(n int64) Goal {
	return Goal{Kind: GoalTargetSize, SizeBytes: n}
}

// Dimensions is an optional bounding constraint. Zero means absent.
type Dimensions struct {
	MaxWidth  int
	MaxHeight int
}

// IsZero reports whether no constraint was supplied.
func (d Dimensions) IsZero() bool {
	return d.MaxWidth <= 0 && d.MaxHeight <= 0
}

// Bound returns the single dimension handed to the encoder: the smaller of
// both values when both are present, whichever one is present otherwise,
// and 0 when the constraint is absent.
func (d Dimensions) Bound() int {
	w, h := d.MaxWidth, d.MaxHeight
	switch {
	case w > 0 && h > 0:
		return min(w, h)
	case w > 0:
		return w
	case h > 0:
		return h
	default:
		return 0
	}
}

// Request is one image plus the caller's goal. It is treated as immutable.
type Request struct {
	Source     *Source
	Goal       Goal
	Dimensions Dimensions
	Format     Format
}

// ProgressFunc receives progress in percent, 0..100.
type ProgressFunc func(percent float64)

// Blob is an encoded image together with its MIME type.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Size returns the blob's length in bytes.
func (b *Blob) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Data))
}

// Attempt is the output of a single encode. MaxDimension is the bound that
// was requested (0 for none), Width and Height are the encoded pixel size.
type Attempt struct {
	Blob         *Blob
	MaxDimension int
	Quality      int
	Width        int
	Height       int
}

// Result is the accepted attempt of a compression and some statistics about
// how it was reached.
type Result struct {
	Attempt

	// Name is the source file name.
	Name string

	// Goal is the normalised goal that was actually served.
	Goal Goal

	// OriginalSize is the source size in bytes.
	OriginalSize int64

	// Encodes counts calls made to the encoder.
	Encodes int

	// Shrinks counts dimension-reduction retries (0 outside the fallback loop).
	Shrinks int

	// MetTarget reports whether a target-size goal was satisfied. Always true
	// for quality goals.
	MetTarget bool
}

// Size returns the compressed size in bytes.
func (r *Result) Size() int64 {
	return r.Blob.Size()
}

// WriteTo writes the compressed image data to w.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	if r.Blob == nil || len(r.Blob.Data) == 0 {
		return 0, fmt.Errorf("pika: no compressed data available")
	}
	n, err := w.Write(r.Blob.Data)
	return int64(n), err
}

// String returns a human-readable summary of the compression result.
func (r *Result) String() string {
	dim := "original"
	if r.MaxDimension > 0 {
		dim = fmt.Sprintf("%dpx", r.MaxDimension)
	}
	return fmt.Sprintf(
		"%s | %s | %s → %s | max %s | Saved: %d%%",
		r.Name, r.Blob.MIMEType,
		FormatSize(r.OriginalSize, 2), FormatSize(r.Size(), 2),
		dim, Savings(r.OriginalSize, r.Size()),
	)
}
