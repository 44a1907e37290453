package binding

import "errors"

// Domain errors for the binding package.
var (
	// ErrInvalidConfig is returned when a binding is missing its id or
	// location, or names an unknown flavor. The binding stays inert.
	ErrInvalidConfig = errors.New("binding: invalid configuration")

	// ErrInert is returned by Activate on a binding that already failed
	// validation. Inert bindings never retry.
	ErrInert = errors.New("binding: inert after failed activation")

	// ErrUnknownFlavor is returned when no binding exists for a flavor name.
	ErrUnknownFlavor = errors.New("binding: unknown flavor")

	// ErrChannelOccupied is returned when attaching a target to a channel
	// index that already has one.
	ErrChannelOccupied = errors.New("binding: channel already has a target")

	// ErrInvalidChannel is returned for negative channel indices.
	ErrInvalidChannel = errors.New("binding: invalid channel index")

	// ErrInvalidEncoding is returned by LineFramer for chunks that are not
	// valid UTF-8. The framer buffer is left untouched.
	ErrInvalidEncoding = errors.New("binding: invalid utf-8 in device data")

	// ErrReadFailed wraps transport read errors reported to OnData.
	ErrReadFailed = errors.New("binding: device read failed")

	// ErrNotPlayable is returned when a playback command targets a binding
	// that has no playback capability.
	ErrNotPlayable = errors.New("binding: playback not supported")
)
