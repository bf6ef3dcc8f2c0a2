// Package pika compresses images locally, either at a fixed quality or toward
// a target file size.
//
// Two layers do the work:
//
//   - Encoder: one decode, optional downscale and re-encode (JPEG or WebP).
//     Given a byte budget it searches the quality itself.
//   - Compressor: the adaptive controller. In target-size mode it shrinks the
//     working dimension by a fixed factor until the output fits, the
//     dimension floor is reached, or the retry budget runs out.
//
// Batch runs many images through one Compressor strictly one after another,
// and the export helpers turn the results into files or a zip archive.
package pika

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Options configures New.
type Options struct {
	// Resampler used for downscaling. Default: Lanczos.
	Resampler Resampler

	// DefaultQuality applies when a request carries no quality. Default: 80.
	DefaultQuality int

	// Logger is optional.
	Logger *zap.Logger

	// Metrics is optional.
	Metrics *Metrics
}

// New returns a Compressor backed by the default Codec.
func New(opts Options) *Compressor {
	codec := NewCodec(CodecOptions{
		Resampler: opts.Resampler,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	return NewCompressor(codec, CompressorOptions{
		DefaultQuality: opts.DefaultQuality,
		Prober:         HeaderProber,
		Logger:         opts.Logger,
		Metrics:        opts.Metrics,
	})
}

// CompressFile compresses the image at src with settings s and writes the
// result to dst.
func (c *Compressor) CompressFile(ctx context.Context, src, dst string, s Settings, onProgress ProgressFunc) (*Result, error) {
	source, err := LoadSource(src)
	if err != nil {
		return nil, err
	}

	res, err := c.Compress(ctx, s.Request(source), onProgress)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(dst, res.Blob.Data, 0o644); err != nil {
		return nil, fmt.Errorf("pika: write %q: %w", dst, err)
	}
	return res, nil
}
