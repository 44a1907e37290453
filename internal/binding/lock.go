package binding

import "sync"

// AttrLocked is the entity attribute mirrored by the lock binding.
const AttrLocked = "locked"

// lockBinding drives a single-channel lock in both directions.
//
// Device lines set or remove the "locked" attribute on the entity at
// channel 0; a "locked" attribute change on that entity writes "1" or "0"
// to the device. Both directions compare against the same one-character
// state, so a device echo or a mirrored attribute never loops back.
type lockBinding struct {
	*base

	mu     sync.Mutex
	framer *LineFramer
	state  string
}

func newLock(cfg Config, deps Deps) *lockBinding {
	return &lockBinding{
		base:   newBase(cfg, deps),
		framer: NewLineFramer(),
	}
}

// Activate validates the binding, synchronises the initial state from the
// entity and subscribes to the device.
func (b *lockBinding) Activate() error {
	started, err := b.activate()
	if err != nil || !started {
		return err
	}

	if n := b.targets.len(); n > 1 {
		b.logWarn("lock binding shared by several entities; each lock should own a dedicated device file",
			"entities", n)
	}

	initial := string(ChannelOff)
	if t, ok := b.targets.get(0); ok {
		if _, locked := t.Attribute(AttrLocked); locked {
			initial = string(ChannelOn)
		}
	}
	b.apply(initial)
	b.write(initial)

	b.subscribe(b)
	return nil
}

// OnData frames device data and applies each line.
func (b *lockBinding) OnData(data []byte, err error) {
	if !b.Active() {
		return
	}
	if err != nil {
		b.readFailed(err)
		return
	}
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	lines, ferr := b.framer.Feed(data)
	b.mu.Unlock()
	if ferr != nil {
		b.logError("device data rejected", ferr)
		return
	}
	for _, line := range lines {
		b.apply(line)
	}
}

// apply takes the first character of line as the new lock state and
// mirrors it onto the entity when it changed.
func (b *lockBinding) apply(line string) {
	if line == "" {
		return
	}
	next := line[:1]

	b.mu.Lock()
	if next == b.state {
		b.mu.Unlock()
		return
	}
	b.state = next
	b.mu.Unlock()

	t, ok := b.targets.get(0)
	if !ok {
		return
	}

	ev := Event{BindingID: b.cfg.ID, Channel: 0}
	if next == string(ChannelOn) {
		t.SetAttribute(AttrLocked, "")
		ev.Name = EventLocked
	} else {
		t.RemoveAttribute(AttrLocked)
		ev.Name = EventUnlocked
	}
	t.Dispatch(ev)
}

// AttributeChanged writes the entity's lock state to the device.
func (b *lockBinding) AttributeChanged(index int, t Target, name, _ string) {
	if !b.Active() || name != AttrLocked || index != 0 {
		return
	}
	if !b.ready() {
		return
	}

	next := string(ChannelOff)
	if _, locked := t.Attribute(AttrLocked); locked {
		next = string(ChannelOn)
	}

	b.mu.Lock()
	if next == b.state {
		b.mu.Unlock()
		return
	}
	b.state = next
	b.mu.Unlock()

	b.write(next)
}

// State returns the current lock state, "1", "0" or "" before activation.
func (b *lockBinding) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
