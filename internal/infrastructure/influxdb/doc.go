// Package influxdb writes binding telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Three measurements
// are produced:
//   - binding_events: one counter point per dispatched binding event
//   - binding_writes: payload sizes written to the device server
//   - video_current_time: playback positions reported by video devices
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WriteBindingEvent(influxdb.BindingEvent{BindingID: "buttons", Event: "press", Channel: 3})
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; failures are reported through SetOnError.
package influxdb
