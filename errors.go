package pika

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned for files outside the accepted image types.
	ErrUnsupportedType = errors.New("pika: unsupported image type")

	// ErrEmptySource is returned when a source carries no bytes.
	ErrEmptySource = errors.New("pika: empty image data")

	// ErrNoCompressedImages is returned by exports that have nothing to write.
	ErrNoCompressedImages = errors.New("pika: no compressed images")
)

// EncodeError reports a decode or encode that could not complete.
// It is never retried by the engine.
type EncodeError struct {
	Name string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("pika: failed to compress %s: %v", e.Name, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ProbeError reports that the natural dimensions of a source could not be read.
type ProbeError struct {
	Name string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("pika: failed to read dimensions of %s: %v", e.Name, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
