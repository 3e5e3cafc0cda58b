// Package scanerr defines the failure taxonomy shared by the scan pipeline stages.
//
// Stages wrap one of the sentinels with context, callers match with errors.Is.
package scanerr

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode reports a malformed or unsupported input image.
	ErrDecode = errors.New("decode image")
	// ErrInvalidImage reports a zero-area or wrong-channel input to a stage.
	ErrInvalidImage = errors.New("invalid image")
	// ErrDegenerateGeometry reports a corner set with no usable transform.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrEncode reports an output that cannot be serialized.
	ErrEncode = errors.New("encode image")
)

// Invalidf wraps ErrInvalidImage with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidImage, fmt.Sprintf(format, args...))
}

// Degeneratef wraps ErrDegenerateGeometry with a formatted reason.
func Degeneratef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateGeometry, fmt.Sprintf(format, args...))
}
