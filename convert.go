package pika

import (
	"fmt"
	"image"
	"math"
	"strconv"

	"golang.org/x/image/draw"
)

// toNRGBARef returns img as *image.NRGBA with a zero origin, converting only
// when needed. The caller must not mutate the result.
func toNRGBARef(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// isOpaque checks if all pixels have full alpha.
func isOpaque(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

// flatten composites img over an opaque white background. JPEG has no alpha
// channel, so transparent areas would otherwise come out black.
func flatten(img *image.NRGBA) image.Image {
	if isOpaque(img) {
		// Same memory, no conversion: the encoder takes the RGBA fast path.
		return &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

// FormatSize renders a byte count for humans, e.g. "1.5 MB".
func FormatSize(b int64, decimals int) string {
	if b <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	v := float64(b)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%s %s", strconv.FormatFloat(roundTo(v, max(0, decimals)), 'f', -1, 64), units[i])
}

// Savings returns the rounded percentage by which compressed is smaller than
// original. It is negative when the output grew.
func Savings(original, compressed int64) int {
	if original == 0 {
		return 0
	}
	return int(math.Round(float64(original-compressed) / float64(original) * 100))
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
