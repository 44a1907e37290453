// Package bdcom is the client for the device communication server.
//
// The device server exposes devices as locations (opaque strings such as
// "/dev/rfid0" or "serial:COM3"). One websocket connection carries every
// location: the client subscribes to reads per location and sends
// addressed writes. Frames are JSON text messages:
//
//	{"type":"subscribe","location":"/dev/lock0"}
//	{"type":"write","location":"/dev/lock0","data":"MQ=="}
//	{"type":"data","location":"/dev/lock0","data":"MAo="}
//	{"type":"error","location":"/dev/lock0","error":"device unplugged"}
//
// data is base64 encoded raw bytes.
//
// # Reconnection
//
// When the connection drops the client reconnects with exponential backoff
// (x1.5, capped at two minutes) and re-sends every subscription. While
// disconnected IsReady reports false and Write returns ErrNotConnected.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Data for one location is
// delivered to its readers sequentially, in arrival order, from the
// receive goroutine.
package bdcom
