package pika

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{-3, "0 Bytes"},
		{512, "512 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{204800, "200 KB"},
		{1048576, "1 MB"},
		{1572864, "1.5 MB"},
		{1234567, "1.18 MB"},
		{3 << 30, "3 GB"},
		{5 << 40, "5120 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.in, 2), "FormatSize(%d)", tt.in)
	}
	assert.Equal(t, "1.2 MB", FormatSize(1234567, 1))
}

func TestSavings(t *testing.T) {
	assert.Equal(t, 0, Savings(0, 100))
	assert.Equal(t, 50, Savings(1000, 500))
	assert.Equal(t, 67, Savings(3, 1))
	assert.Equal(t, 0, Savings(100, 100))
	assert.Equal(t, -20, Savings(100, 120))
}

func TestToNRGBARef(t *testing.T) {
	n := makeTestImage(4, 4)
	assert.Same(t, n, toNRGBARef(n))

	offset := n.SubImage(image.Rect(1, 1, 3, 3))
	got := toNRGBARef(offset)
	assert.Equal(t, image.Rect(0, 0, 2, 2), got.Bounds())
	assert.Equal(t, n.NRGBAAt(1, 1), got.NRGBAAt(0, 0))

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, toNRGBARef(gray).NRGBAAt(1, 1))
}

func TestFlatten(t *testing.T) {
	opaque := makeTestImage(4, 4)
	flat := flatten(opaque)
	rgba, ok := flat.(*image.RGBA)
	if assert.True(t, ok) {
		assert.Same(t, &opaque.Pix[0], &rgba.Pix[0], "opaque images are not copied")
	}

	half := makeSolidImage(2, 2, color.NRGBA{R: 0, G: 0, B: 0, A: 128})
	r, g, b, a := flatten(half).At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.InDelta(t, 127, r>>8, 2)
	assert.InDelta(t, 127, g>>8, 2)
	assert.InDelta(t, 127, b>>8, 2)
}
