package pika

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// ArchiveName is the default file name for a batch download.
const ArchiveName = "compressed-images.zip"

// ArchiveEntry is one file of an export.
type ArchiveEntry struct {
	Name string
	Data []byte
}

// CompressedName derives the output file name: the source extension is
// replaced by "-compressed" and the extension of mime.
func CompressedName(name, mime string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	ext := JPEG.Extension()
	if mime == MIMEWebP {
		ext = WebP.Extension()
	}
	return base + "-compressed." + ext
}

// WriteArchive writes entries to w as a zip archive. Encoded images are
// already compressed, so entries are stored without deflate. Duplicate names
// get a numeric suffix ("-2", "-3", ...).
func WriteArchive(w io.Writer, entries []ArchiveEntry) error {
	if len(entries) == 0 {
		return ErrNoCompressedImages
	}

	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(entries))
	now := time.Now()

	for _, e := range entries {
		name := uniqueName(e.Name, seen)
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("pika: archive %q: %w", name, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			return fmt.Errorf("pika: archive %q: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("pika: archive: %w", err)
	}
	return nil
}

func uniqueName(name string, seen map[string]int) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if _, taken := seen[candidate]; !taken {
			seen[name] = n
			seen[candidate] = 1
			return candidate
		}
	}
}

// SaveEntry writes e into dir and returns the written path.
func SaveEntry(dir string, e ArchiveEntry) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pika: create %q: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(e.Name))
	if err := os.WriteFile(path, e.Data, 0o644); err != nil {
		return "", fmt.Errorf("pika: write %q: %w", path, err)
	}
	return path, nil
}

// SaveArchive writes entries as a zip archive at path.
func SaveArchive(path string, entries []ArchiveEntry) error {
	if len(entries) == 0 {
		return ErrNoCompressedImages
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pika: create %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pika: create %q: %w", path, err)
	}
	if err := WriteArchive(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pika: close %q: %w", path, err)
	}
	return nil
}
