package influxdb

import "errors"

// Errors returned by the telemetry client. Batch write failures never come
// back from a Write call; they reach the SetOnError callback wrapped in
// ErrWriteFailed.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers treat it as "run without telemetry".
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	// ErrConnectionFailed is returned when the startup ping fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnhealthy is returned when the server answers the ping but reports
	// itself not ready.
	ErrUnhealthy = errors.New("influxdb: server not healthy")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps asynchronous batch write errors.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
