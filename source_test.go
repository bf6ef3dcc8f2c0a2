package pika

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceDetectsType(t *testing.T) {
	img := makeTestImage(20, 10)

	src, err := NewSource("a.png", pngBytes(t, img))
	require.NoError(t, err)
	assert.Equal(t, MIMEPNG, src.MIMEType)

	src, err = NewSource("renamed.png", jpegBytes(t, img))
	require.NoError(t, err)
	assert.Equal(t, MIMEJPEG, src.MIMEType, "content wins over the extension")

	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, img, &webp.Options{Quality: 80}))
	src, err = NewSource("a.webp", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, MIMEWebP, src.MIMEType)

	size, err := src.NaturalSize()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 10), size)
}

func TestNewSourceRejects(t *testing.T) {
	_, err := NewSource("empty.jpg", nil)
	require.ErrorIs(t, err, ErrEmptySource)

	_, err = NewSource("notes.txt", []byte("hello, world"))
	require.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewSource("doc.pdf", []byte("%PDF-1.4 ..."))
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestIsAccepted(t *testing.T) {
	for _, m := range []string{MIMEJPEG, MIMEPNG, MIMEWebP, MIMEGIF} {
		assert.True(t, IsAccepted(m), m)
	}
	for _, m := range []string{"image/bmp", "image/tiff", "text/plain", ""} {
		assert.False(t, IsAccepted(m), m)
	}
}

func TestNaturalSizeHeaderOnly(t *testing.T) {
	src := pngSource(t, "a.png", makeTestImage(123, 45))

	size, err := src.NaturalSize()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(123, 45), size)
	assert.Nil(t, src.img, "probing must not decode pixels")
}

func TestNaturalSizeError(t *testing.T) {
	src := &Source{Name: "x.png", Data: []byte("\x89PNG\r\n\x1a\ngarbage")}
	_, err := src.NaturalSize()
	require.Error(t, err)
}

func TestDecodeRejectsHugeDimensions(t *testing.T) {
	// Only the header is read: a 1×(MaxImageDimension+1) PNG.
	src := pngSource(t, "tall.png", image.NewNRGBA(image.Rect(0, 0, 1, MaxImageDimension+1)))
	_, err := src.decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceed")
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, makeTestImage(10, 10)), 0o644))

	src, err := LoadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", src.Name)
	assert.Positive(t, src.Size())

	_, err = LoadSource(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestAcquire(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "album")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(sub, "nested"), 0o755))

	write := func(path string, data []byte) {
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	write(filepath.Join(sub, "b.png"), pngBytes(t, makeTestImage(8, 8)))
	write(filepath.Join(sub, "a.jpg"), jpegBytes(t, makeTestImage(8, 8)))
	write(filepath.Join(sub, "readme.txt"), []byte("text"))
	write(filepath.Join(sub, "nested", "deep.png"), pngBytes(t, makeTestImage(8, 8)))
	single := filepath.Join(dir, "single.png")
	write(single, pngBytes(t, makeTestImage(8, 8)))

	sources, rejected := Acquire([]string{single, sub, filepath.Join(dir, "missing.png")})

	var names []string
	for _, s := range sources {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"single.png", "a.jpg", "b.png"}, names)

	require.Len(t, rejected, 2)
	assert.Equal(t, filepath.Join(dir, "missing.png"), rejected[0].Path)
	assert.Equal(t, filepath.Join(sub, "readme.txt"), rejected[1].Path)
	assert.ErrorIs(t, rejected[1].Err, ErrUnsupportedType)
}
