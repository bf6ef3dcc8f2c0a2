package pika

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	// Decoders accepted by acquisition (webp is registered below).
	_ "image/gif"
	_ "image/png"

	"github.com/chai2010/webp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

func init() {
	// Register the WebP decoder so image.Decode handles WebP input.
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// Encoder is the encode primitive: one decode + re-encode with no retry
// policy of its own. When p.MaxBytes is set it picks the quality itself.
type Encoder interface {
	Encode(ctx context.Context, src *Source, p EncodeParams, onProgress ProgressFunc) (*Attempt, error)
}

// EncodeParams configures a single encode.
type EncodeParams struct {
	// Quality is 1..100. In size-targeted mode it is the highest quality tried.
	Quality int

	// MaxDimension bounds the larger side of the output. 0 keeps the original size.
	MaxDimension int

	// Format is the output format.
	Format Format

	// MaxBytes selects size-targeted mode when positive.
	MaxBytes int64
}

// CodecOptions configures a Codec.
type CodecOptions struct {
	// Resampler used when an image has to be scaled down.
	Resampler Resampler

	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Codec is the default Encoder. Encoding runs on its own goroutine while the
// caller waits; at most one encode per Codec is in flight at any time.
type Codec struct {
	resampler Resampler
	log       *zap.Logger
	metrics   *Metrics
	gate      *semaphore.Weighted
}

// NewCodec returns a Codec ready for use.
func NewCodec(opts CodecOptions) *Codec {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Codec{
		resampler: opts.Resampler,
		log:       log.Named("codec"),
		metrics:   opts.Metrics,
		gate:      semaphore.NewWeighted(1),
	}
}

type encodeOutcome struct {
	attempt *Attempt
	err     error
}

// Encode decodes src, scales it to fit p.MaxDimension and encodes it in
// p.Format. ctx only bounds the wait for a free slot: once started, an
// encode always runs to completion. onProgress always receives 100 last.
func (c *Codec) Encode(ctx context.Context, src *Source, p EncodeParams, onProgress ProgressFunc) (*Attempt, error) {
	defer report(onProgress, 100)

	if src == nil {
		return nil, &EncodeError{Name: "<nil>", Err: errors.New("nil source")}
	}
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan encodeOutcome, 1)
	go func() {
		defer c.gate.Release(1)
		a, err := c.encode(src, p, onProgress)
		done <- encodeOutcome{attempt: a, err: err}
	}()
	out := <-done

	if out.err != nil {
		return nil, &EncodeError{Name: src.Name, Err: out.err}
	}
	return out.attempt, nil
}

func (c *Codec) encode(src *Source, p EncodeParams, onProgress ProgressFunc) (*Attempt, error) {
	img, err := src.decode()
	if err != nil {
		return nil, err
	}
	report(onProgress, 10)

	scaled := scaleToFit(img, p.MaxDimension, c.resampler)
	report(onProgress, 20)

	var pixels image.Image = scaled
	if p.Format == JPEG {
		pixels = flatten(scaled)
	}

	quality := clampQuality(p.Quality)
	c.metrics.encode(p.Format)

	var data []byte
	if p.MaxBytes > 0 {
		data, quality, err = searchQuality(pixels, p.Format, quality, p.MaxBytes, func(step, steps int) {
			report(onProgress, 20+75*float64(step)/float64(steps))
		})
	} else {
		data, err = encodeAt(pixels, p.Format, quality)
	}
	if err != nil {
		return nil, err
	}

	// Re-encoding an already compressed image can come out larger. When the
	// pixels went through untouched the input itself is the better output.
	kept := false
	if scaled == img && !src.oriented && src.MIMEType == p.Format.MIMEType() && int64(len(data)) > src.Size() {
		data = src.Data
		kept = true
	}

	c.log.Debug("encoded",
		zap.String("file", src.Name),
		zap.String("format", p.Format.String()),
		zap.Int("quality", quality),
		zap.Int("max_dimension", p.MaxDimension),
		zap.Int("width", scaled.Bounds().Dx()),
		zap.Int("height", scaled.Bounds().Dy()),
		zap.Int("size", len(data)),
		zap.Int64("max_bytes", p.MaxBytes),
		zap.Bool("kept_source", kept),
	)

	return &Attempt{
		Blob:         &Blob{Data: data, MIMEType: p.Format.MIMEType()},
		MaxDimension: p.MaxDimension,
		Quality:      quality,
		Width:        scaled.Bounds().Dx(),
		Height:       scaled.Bounds().Dy(),
	}, nil
}

// encodeAt encodes img once at quality q (1..100).
func encodeAt(img image.Image, f Format, q int) ([]byte, error) {
	var buf bytes.Buffer
	switch f {
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("jpeg encode: %w", err)
		}
	case WebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(q)}); err != nil {
			return nil, fmt.Errorf("webp encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %d", int(f))
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	return max(1, min(100, q))
}

func report(fn ProgressFunc, pct float64) {
	if fn != nil {
		fn(pct)
	}
}
