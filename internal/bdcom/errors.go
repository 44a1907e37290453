package bdcom

import "errors"

// Sentinel errors for device server operations.
var (
	// ErrConnectionFailed is returned when the initial dial fails.
	ErrConnectionFailed = errors.New("bdcom: connection failed")

	// ErrNotConnected is returned when writing while disconnected.
	ErrNotConnected = errors.New("bdcom: not connected")

	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("bdcom: client closed")

	// ErrInvalidLocation is returned for an empty location.
	ErrInvalidLocation = errors.New("bdcom: invalid location")

	// ErrDeviceError wraps error frames reported by the device server.
	ErrDeviceError = errors.New("bdcom: device error")

	// ErrWriteFailed is returned when a frame could not be sent.
	ErrWriteFailed = errors.New("bdcom: write failed")
)
