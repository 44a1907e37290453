package bdcom

// Frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameWrite       = "write"
	FrameData        = "data"
	FrameError       = "error"
)

// Frame is one JSON message exchanged with the device server.
// Data is carried as base64 by encoding/json.
type Frame struct {
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}
