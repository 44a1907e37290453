package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bindings service.
const (
	MeasurementBindingEvents = "binding_events"
	MeasurementBindingWrites = "binding_writes"
	MeasurementVideoTime     = "video_current_time"
)

// BindingEvent is the telemetry view of a dispatched binding event.
type BindingEvent struct {
	BindingID string
	Flavor    string
	EntityID  string
	Event     string

	// Channel is the channel the event came from, or -1 when the event is
	// not tied to a channel (lock and video events).
	Channel int

	Time time.Time
}

// WriteBindingEvent records one binding event as a counter point.
//
//	binding_events,binding_id=buttons,flavor=ibits-button,entity_id=b1,event=press channel=3i,count=1i
func (c *Client) WriteBindingEvent(ev BindingEvent) {
	c.writePoint(bindingEventPoint(ev))
}

func bindingEventPoint(ev BindingEvent) *write.Point {
	tags := map[string]string{
		"binding_id": ev.BindingID,
		"event":      ev.Event,
	}
	if ev.Flavor != "" {
		tags["flavor"] = ev.Flavor
	}
	if ev.EntityID != "" {
		tags["entity_id"] = ev.EntityID
	}

	fields := map[string]any{"count": 1}
	if ev.Channel >= 0 {
		fields["channel"] = ev.Channel
	}
	return write.NewPoint(MeasurementBindingEvents, tags, fields, pointTime(ev.Time))
}

// WriteDeviceWrite records one payload written to the device server.
func (c *Client) WriteDeviceWrite(bindingID, location string, size int, at time.Time) {
	c.writePoint(write.NewPoint(MeasurementBindingWrites,
		map[string]string{"binding_id": bindingID, "location": location},
		map[string]any{"bytes": size},
		pointTime(at),
	))
}

// WriteVideoTime records a playback position reported by a video device.
func (c *Client) WriteVideoTime(bindingID, entityID string, seconds float64, at time.Time) {
	c.writePoint(videoTimePoint(bindingID, entityID, seconds, at))
}

func videoTimePoint(bindingID, entityID string, seconds float64, at time.Time) *write.Point {
	return write.NewPoint(MeasurementVideoTime,
		map[string]string{"binding_id": bindingID, "entity_id": entityID},
		map[string]any{"seconds": seconds},
		pointTime(at),
	)
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
