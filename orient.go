package pika

import (
	"encoding/binary"
	"image"
	"io"
)

// Orientation is an EXIF orientation tag value (1..8).
type Orientation int

const (
	OrientNormal      Orientation = 1
	OrientFlipH       Orientation = 2
	OrientRotate180   Orientation = 3
	OrientFlipV       Orientation = 4
	OrientTranspose   Orientation = 5
	OrientRotate90CW  Orientation = 6
	OrientTransverse  Orientation = 7
	OrientRotate270CW Orientation = 8
)

// swapsAxes reports whether correcting this orientation exchanges width and height.
func (o Orientation) swapsAxes() bool {
	return o >= OrientTranspose && o <= OrientRotate270CW
}

// ReadOrientation returns the EXIF orientation of a JPEG stream, or
// OrientNormal when the stream is not a JPEG or carries no orientation.
func ReadOrientation(r io.Reader) Orientation {
	br := &byteReader{r: r}
	if br.u8() != 0xFF || br.u8() != 0xD8 {
		return OrientNormal
	}
	for br.err == nil {
		if br.u8() != 0xFF {
			return OrientNormal
		}
		marker := br.u8()
		for marker == 0xFF {
			marker = br.u8()
		}
		segLen := int(br.u16()) - 2
		if br.err != nil || segLen < 0 {
			return OrientNormal
		}
		switch marker {
		case 0xE1:
			return orientationFromAPP1(br.bytes(segLen))
		case 0xDA:
			// Start of scan: metadata segments are over.
			return OrientNormal
		}
		br.skip(segLen)
	}
	return OrientNormal
}

// orientationFromAPP1 extracts tag 0x0112 from IFD0 of an Exif APP1 payload.
func orientationFromAPP1(seg []byte) Orientation {
	if len(seg) < 14 || string(seg[:6]) != "Exif\x00\x00" {
		return OrientNormal
	}
	tiff := seg[6:]

	var bo binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return OrientNormal
	}
	if bo.Uint16(tiff[2:4]) != 42 {
		return OrientNormal
	}

	ifd := int(bo.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return OrientNormal
	}
	n := int(bo.Uint16(tiff[ifd:]))
	for i := 0; i < n; i++ {
		e := ifd + 2 + i*12
		if e+12 > len(tiff) {
			break
		}
		if bo.Uint16(tiff[e:]) != 0x0112 {
			continue
		}
		// SHORT only.
		if bo.Uint16(tiff[e+2:]) != 3 {
			return OrientNormal
		}
		if v := Orientation(bo.Uint16(tiff[e+8:])); v >= OrientNormal && v <= OrientRotate270CW {
			return v
		}
		return OrientNormal
	}
	return OrientNormal
}

// ApplyOrientation returns img transformed so that it displays upright,
// i.e. as if its orientation were OrientNormal.
func ApplyOrientation(img *image.NRGBA, o Orientation) *image.NRGBA {
	if o <= OrientNormal || o > OrientRotate270CW {
		return img
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	dw, dh := w, h
	if o.swapsAxes() {
		dw, dh = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case OrientFlipH:
				dx, dy = w-1-x, y
			case OrientRotate180:
				dx, dy = w-1-x, h-1-y
			case OrientFlipV:
				dx, dy = x, h-1-y
			case OrientTranspose:
				dx, dy = y, x
			case OrientRotate90CW:
				dx, dy = h-1-y, x
			case OrientTransverse:
				dx, dy = h-1-y, w-1-x
			case OrientRotate270CW:
				dx, dy = y, w-1-x
			}
			so := y*img.Stride + x*4
			do := dy*dst.Stride + dx*4
			copy(dst.Pix[do:do+4], img.Pix[so:so+4])
		}
	}
	return dst
}

// byteReader is a sticky-error reader for walking JPEG segments.
type byteReader struct {
	r   io.Reader
	err error
	buf [2]byte
}

func (b *byteReader) u8() byte {
	if b.err != nil {
		return 0
	}
	_, b.err = io.ReadFull(b.r, b.buf[:1])
	return b.buf[0]
}

func (b *byteReader) u16() uint16 {
	if b.err != nil {
		return 0
	}
	_, b.err = io.ReadFull(b.r, b.buf[:2])
	return binary.BigEndian.Uint16(b.buf[:])
}

func (b *byteReader) bytes(n int) []byte {
	if b.err != nil {
		return nil
	}
	p := make([]byte, n)
	_, b.err = io.ReadFull(b.r, p)
	return p
}

func (b *byteReader) skip(n int) {
	if b.err != nil {
		return
	}
	_, b.err = io.CopyN(io.Discard, b.r, int64(n))
}
