package pika

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Resampler selects the interpolation used when an image is scaled down.
type Resampler int

const (
	// Lanczos is Lanczos-3 via nfnt/resize. Sharpest, slowest. Default.
	Lanczos Resampler = iota
	// CatmullRom is a bicubic kernel via x/image/draw.
	CatmullRom
	// BiLinear is the fastest kernel, used for previews.
	BiLinear
)

func (r Resampler) String() string {
	switch r {
	case CatmullRom:
		return "catmullrom"
	case BiLinear:
		return "bilinear"
	default:
		return "lanczos"
	}
}

// ParseResampler parses a resampler name.
func ParseResampler(s string) (Resampler, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lanczos", "lanczos3":
		return Lanczos, nil
	case "catmullrom", "bicubic":
		return CatmullRom, nil
	case "bilinear":
		return BiLinear, nil
	default:
		return Lanczos, fmt.Errorf("pika: unknown resampler %q", s)
	}
}

// fitWithin returns the size of a w×h image scaled so that its larger side
// is at most maxDim. It never upscales and never returns a zero side.
func fitWithin(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	ratio := float64(maxDim) / float64(max(w, h))
	nw := int(math.Max(1, math.Round(float64(w)*ratio)))
	nh := int(math.Max(1, math.Round(float64(h)*ratio)))
	return nw, nh
}

// scaleToFit downsizes img so that neither side exceeds maxDim.
func scaleToFit(img *image.NRGBA, maxDim int, r Resampler) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	nw, nh := fitWithin(w, h, maxDim)
	if nw == w && nh == h {
		return img
	}

	switch r {
	case CatmullRom, BiLinear:
		dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
		var k draw.Scaler = draw.CatmullRom
		if r == BiLinear {
			k = draw.BiLinear
		}
		k.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	default:
		return toNRGBARef(resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3))
	}
}
