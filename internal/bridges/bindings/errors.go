package bindings

import "errors"

// Domain errors for the binding hub.
var (
	// ErrHubNotRunning is returned when an operation needs a started hub.
	ErrHubNotRunning = errors.New("hub: not running")

	// ErrHubAlreadyRunning is returned when Start is called twice.
	ErrHubAlreadyRunning = errors.New("hub: already running")

	// ErrBindingNotFound is returned when a binding ID does not exist.
	ErrBindingNotFound = errors.New("hub: binding not found")

	// ErrInvalidCommand is returned for unknown or malformed commands.
	ErrInvalidCommand = errors.New("hub: invalid command")

	// ErrInvalidParameters is returned when command parameters are missing
	// or have the wrong type.
	ErrInvalidParameters = errors.New("hub: invalid command parameters")

	// ErrEntityUnbound is returned when a playback command targets an
	// entity with no binding.
	ErrEntityUnbound = errors.New("hub: entity has no binding")
)
