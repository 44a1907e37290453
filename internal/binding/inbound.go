package binding

import (
	"fmt"
	"sync"
)

// InboundEngine turns a device byte stream into per-channel events.
//
// Each complete line is a positional bitstring. For every position that has
// a target and whose value differs from the last observed value, the
// matching event of the EventPair is dispatched. The stored snapshot is then
// replaced by the whole line, so positions without a target are still
// tracked. A target attached later does not receive events it missed.
//
// Lines are processed strictly in arrival order; dispatch happens while the
// engine lock is held, so targets must not feed data back into the same
// engine.
type InboundEngine struct {
	mu        sync.Mutex
	framer    *LineFramer
	store     *ChannelStore
	events    EventPair
	bindingID string
	lookup    func(index int) (Target, bool)
}

// NewInboundEngine creates an engine that resolves channel targets through
// lookup and names events with events.
func NewInboundEngine(bindingID string, events EventPair, lookup func(index int) (Target, bool)) *InboundEngine {
	return &InboundEngine{
		framer:    NewLineFramer(),
		store:     NewChannelStore(),
		events:    events,
		bindingID: bindingID,
		lookup:    lookup,
	}
}

// Feed frames a chunk and processes every completed line.
// An encoding error leaves framer and store untouched.
func (e *InboundEngine) Feed(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	lines, err := e.framer.Feed(data)
	if err != nil {
		return fmt.Errorf("framing device data: %w", err)
	}
	for _, line := range lines {
		e.processLine(line)
	}
	return nil
}

// ProcessLine runs one complete line through diff and dispatch and returns
// the changes that raised events.
func (e *InboundEngine) ProcessLine(line string) []ChannelChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processLine(line)
}

func (e *InboundEngine) processLine(line string) []ChannelChange {
	changes := e.store.DiffScan(line, func(i int) bool {
		_, ok := e.lookup(i)
		return ok
	})

	for _, c := range changes {
		t, ok := e.lookup(c.Index)
		if !ok {
			continue
		}
		t.Dispatch(Event{
			Name:      e.events.For(c.Value),
			BindingID: e.bindingID,
			Channel:   c.Index,
		})
	}

	e.store.Replace(line)
	return changes
}

// Snapshot returns the last line observed.
func (e *InboundEngine) Snapshot() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.String()
}

// Buffered returns the incomplete fragment waiting for its separator.
func (e *InboundEngine) Buffered() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.framer.Buffered()
}
