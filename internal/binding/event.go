package binding

// Event names dispatched to bound targets.
const (
	EventPress   = "press"
	EventRelease = "release"
	EventPickup  = "pickup"
	EventPutdown = "putdown"

	EventLocked   = "locked"
	EventUnlocked = "unlocked"

	EventPlay       = "play"
	EventPlaying    = "playing"
	EventPause      = "pause"
	EventLoadStart  = "loadstart"
	EventLoadedData = "loadeddata"
	EventTimeUpdate = "timeupdate"
	EventEnded      = "ended"
)

// Event is a named notification raised on a target. Value carries the
// payload for payload-bearing events (timeupdate carries seconds) and is
// nil otherwise.
type Event struct {
	Name  string
	Value any

	// BindingID and Channel identify where the event came from.
	BindingID string
	Channel   int
}

// EventPair names the two events a bit channel can raise.
type EventPair struct {
	Active   string
	Inactive string
}

// For returns the event name for a channel value.
func (p EventPair) For(v rune) string {
	if v == ChannelOn {
		return p.Active
	}
	return p.Inactive
}
