package pika

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MaxImageDimension is the largest accepted width or height. Larger images
// are rejected before a full decode to avoid decompression bombs.
const MaxImageDimension = 16384

// AcceptedTypes lists the MIME types accepted by acquisition.
var AcceptedTypes = []string{MIMEJPEG, MIMEPNG, MIMEWebP, MIMEGIF}

// IsAccepted reports whether mime is in AcceptedTypes.
func IsAccepted(mime string) bool {
	for _, t := range AcceptedTypes {
		if t == mime {
			return true
		}
	}
	return false
}

// DetectType sniffs the MIME type from the leading bytes of data.
func DetectType(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return http.DetectContentType(head)
}

// Source is an input image: its bytes, declared type and name. Pixels and
// natural dimensions are determined lazily and cached, so a Source must not
// be copied after first use and must not be shared between requests.
type Source struct {
	Name     string
	MIMEType string
	Data     []byte

	decodeOnce sync.Once
	img        *image.NRGBA
	decodeErr  error
	oriented   bool

	sizeOnce sync.Once
	size     image.Point
	sizeErr  error
}

// NewSource validates data against the accepted types and wraps it.
func NewSource(name string, data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, name)
	}
	mime := DetectType(data)
	if !IsAccepted(mime) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mime)
	}
	return &Source{Name: name, MIMEType: mime, Data: data}, nil
}

// LoadSource reads an image file from disk.
func LoadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pika: open %q: %w", path, err)
	}
	return NewSource(filepath.Base(path), data)
}

// Size returns the source length in bytes.
func (s *Source) Size() int64 {
	return int64(len(s.Data))
}

// NaturalSize returns the display width and height of the image, after EXIF
// orientation. It reads only the header unless the image is already decoded.
func (s *Source) NaturalSize() (image.Point, error) {
	s.sizeOnce.Do(func() {
		if s.img != nil {
			s.size = s.img.Bounds().Size()
			return
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(s.Data))
		if err != nil {
			s.sizeErr = err
			return
		}
		s.size = image.Pt(cfg.Width, cfg.Height)
		if ReadOrientation(bytes.NewReader(s.Data)).swapsAxes() {
			s.size = image.Pt(cfg.Height, cfg.Width)
		}
	})
	return s.size, s.sizeErr
}

// decode returns the oriented pixels, decoding on first use.
func (s *Source) decode() (*image.NRGBA, error) {
	s.decodeOnce.Do(func() {
		if len(s.Data) == 0 {
			s.decodeErr = ErrEmptySource
			return
		}
		r := bytes.NewReader(s.Data)
		cfg, _, err := image.DecodeConfig(r)
		if err == nil && (cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension) {
			s.decodeErr = fmt.Errorf("image dimensions %dx%d exceed maximum allowed %dx%d",
				cfg.Width, cfg.Height, MaxImageDimension, MaxImageDimension)
			return
		}

		img, _, err := image.Decode(bytes.NewReader(s.Data))
		if err != nil {
			s.decodeErr = fmt.Errorf("decode: %w", err)
			return
		}
		nrgba := toNRGBARef(img)
		if orient := ReadOrientation(bytes.NewReader(s.Data)); orient > OrientNormal {
			nrgba = ApplyOrientation(nrgba, orient)
			s.oriented = true
		}
		s.img = nrgba
	})
	return s.img, s.decodeErr
}

// release drops the decoded pixels once a request is done with them. The
// natural size stays cached; a later decode starts over.
func (s *Source) release() {
	s.img = nil
	s.decodeErr = nil
	s.decodeOnce = sync.Once{}
}

// Rejection records a path that acquisition skipped and why.
type Rejection struct {
	Path string
	Err  error
}

// Acquire loads every accepted image among paths. Directories are expanded
// one level deep. Unreadable or unsupported files are returned as rejections
// rather than failing the whole call.
func Acquire(paths []string) ([]*Source, []Rejection) {
	var (
		sources  []*Source
		rejected []Rejection
	)
	for _, p := range expandPaths(paths, &rejected) {
		src, err := LoadSource(p)
		if err != nil {
			rejected = append(rejected, Rejection{Path: p, Err: err})
			continue
		}
		sources = append(sources, src)
	}
	return sources, rejected
}

func expandPaths(paths []string, rejected *[]Rejection) []string {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			*rejected = append(*rejected, Rejection{Path: p, Err: err})
			continue
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			*rejected = append(*rejected, Rejection{Path: p, Err: err})
			continue
		}
		var files []string
		for _, e := range entries {
			if e.Type().IsRegular() {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out
}
