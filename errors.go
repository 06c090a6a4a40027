package reenact

import "github.com/pkg/errors"

// The error categories returned by the package and its loaders.
// Every returned error wraps one of them, so they can be tested with errors.Is.
var (
	// ErrConfiguration is returned for missing or malformed configuration keys.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrCheckpointMismatch is returned when the weights do not match the instantiated networks.
	ErrCheckpointMismatch = errors.New("checkpoint does not match the network")
	// ErrInputShape is returned when a frame or keypoint tensor has an unexpected shape.
	ErrInputShape = errors.New("unexpected tensor shape")
	// ErrDeviceUnavailable is returned when the requested execution device is not present.
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// shapeErrorf wraps ErrInputShape with a formatted message.
func shapeErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrInputShape, format, args...)
}
