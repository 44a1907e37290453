// Package api implements the HTTP REST API and WebSocket server for the
// bindings service.
//
// This package provides:
//   - REST endpoints to inspect bindings and read or change entities
//   - Journal queries for an entity's recent events and device writes
//   - WebSocket hub broadcasting binding events and entity changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The server sits beside the MQTT bus as a second way in. Entity changes
// made through the API go through the same entity registry the binding hub
// uses, so they reach the bound binding synchronously. Binding events reach
// WebSocket clients through Hub.Broadcast, which the binding hub calls
// directly.
//
// # Channels
//
// WebSocket clients subscribe to:
//
//	binding.event   every event raised by a binding (press, locked, timeupdate, ...)
//	entity.change   attribute and style changes on any entity
package api
