package pika

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = uint8(x * 255 / w)
			img.Pix[off+1] = uint8(y * 255 / h)
			img.Pix[off+2] = uint8((x + y) % 256)
			img.Pix[off+3] = 0xff
		}
	}
	return img
}

// makeNoisyImage returns an image that compresses poorly.
func makeNoisyImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(2463534242)
	for i := 0; i < len(img.Pix); i += 4 {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		img.Pix[i] = uint8(seed)
		img.Pix[i+1] = uint8(seed >> 8)
		img.Pix[i+2] = uint8(seed >> 16)
		img.Pix[i+3] = 0xff
	}
	return img
}

func makeSolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func pngSource(t *testing.T, name string, img image.Image) *Source {
	t.Helper()
	src, err := NewSource(name, pngBytes(t, img))
	require.NoError(t, err)
	return src
}

func ctx() context.Context { return context.Background() }

// fakeEncoder models output size as bytesPerPixel × the pixel count after
// scaling natural to fit MaxDimension. It records every call.
type fakeEncoder struct {
	natural       image.Point
	bytesPerPixel float64
	failAt        int // 1-based call index that fails; 0 never

	mu       sync.Mutex
	calls    []EncodeParams
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEncoder) Encode(_ context.Context, src *Source, p EncodeParams, onProgress ProgressFunc) (*Attempt, error) {
	defer report(onProgress, 100)

	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, p)
	call := len(f.calls)
	f.mu.Unlock()

	report(onProgress, 50)
	if call == f.failAt {
		return nil, &EncodeError{Name: src.Name, Err: errors.New("encoder exploded")}
	}

	w, h := fitWithin(f.natural.X, f.natural.Y, p.MaxDimension)
	size := int64(float64(w*h) * f.bytesPerPixel)
	return &Attempt{
		Blob:         &Blob{Data: make([]byte, size), MIMEType: p.Format.MIMEType()},
		MaxDimension: p.MaxDimension,
		Quality:      p.Quality,
		Width:        w,
		Height:       h,
	}, nil
}

func (f *fakeEncoder) Calls() []EncodeParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EncodeParams(nil), f.calls...)
}

func (f *fakeEncoder) prober() Prober {
	return ProberFunc(func(context.Context, *Source) (image.Point, error) {
		return f.natural, nil
	})
}

func fakeSource(name string) *Source {
	return &Source{Name: name, MIMEType: MIMEJPEG, Data: make([]byte, 1000)}
}

// recorder collects progress reports.
type recorder struct {
	mu   sync.Mutex
	seen []float64
}

func (r *recorder) report(pct float64) {
	r.mu.Lock()
	r.seen = append(r.seen, pct)
	r.mu.Unlock()
}

func (r *recorder) values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.seen...)
}
