// Package journal keeps a local audit trail of binding activity.
//
// Two kinds of entries are recorded in the binding_events table: channel
// and playback events raised by bindings ("event") and payloads written to
// the device server ("write"). The journal survives restarts and is
// queried by the HTTP API; entries older than the configured retention are
// pruned by the hub.
package journal
