//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/garage-opener/internal/door"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(Config) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (door.Levels, error) {
	return door.Levels{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealWriter is not available on non-Linux platforms.
type RealWriter struct{}

// NewRealWriter returns an error on non-Linux platforms.
func NewRealWriter(Config) (*RealWriter, error) {
	return nil, errUnsupported
}

// SetMotor is not implemented on non-Linux platforms.
func (w *RealWriter) SetMotor(bool, bool) error {
	return errUnsupported
}

// SetLight is not implemented on non-Linux platforms.
func (w *RealWriter) SetLight(bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (w *RealWriter) Close() error {
	return nil
}
