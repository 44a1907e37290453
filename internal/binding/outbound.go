package binding

import (
	"fmt"
	"strings"
)

// WriteFunc delivers one outbound payload to the device.
type WriteFunc func(payload string) error

// OutboundEngine turns label changes on an entity into the bitstring for
// the whole binding.
//
// Every entity owns a block of channelsPerElement channels starting at
// index*channelsPerElement. A change zeroes the block and sets the one
// channel the label maps to. When nothing differs from the stored state no
// write is issued. The whole diff, serialise and write sequence runs under
// the engine Mutex, so at most one write is in flight.
type OutboundEngine struct {
	mtx                Mutex
	store              *ChannelStore
	channels           ChannelIndexMap
	channelsPerElement int
	write              WriteFunc
}

// NewOutboundEngine creates an engine. channelsPerElement below 1 is
// treated as 1.
func NewOutboundEngine(channels ChannelIndexMap, channelsPerElement int, write WriteFunc) *OutboundEngine {
	if channelsPerElement < 1 {
		channelsPerElement = 1
	}
	return &OutboundEngine{
		store:              NewChannelStore(),
		channels:           channels,
		channelsPerElement: channelsPerElement,
		write:              write,
	}
}

// Block returns the first channel and width owned by the entity at index.
func (e *OutboundEngine) Block(index int) (start, width int) {
	return index * e.channelsPerElement, e.channelsPerElement
}

// Propose builds the change set for an entity showing label. The block is
// all ChannelOff except the label's channel, when the label is known and
// its offset fits inside the block.
func (e *OutboundEngine) Propose(index int, label string) ChangeSet {
	start, width := e.Block(index)
	changes := make(ChangeSet, width)
	for off := 0; off < width; off++ {
		changes[start+off] = ChannelOff
	}
	if offset, ok := e.channels.Lookup(label); ok && offset < width {
		changes[start+offset] = ChannelOn
	}
	return changes
}

// Update applies a label change for the entity at index.
//
// It returns whether a write was issued. The lock is released on every
// path, including a panic inside the write, which is recovered and
// returned as an error.
func (e *OutboundEngine) Update(index int, label string) (wrote bool, err error) {
	if index < 0 {
		return false, fmt.Errorf("%w: %d", ErrInvalidChannel, index)
	}

	unlock := e.mtx.Lock()
	defer unlock()
	defer func() {
		if r := recover(); r != nil {
			wrote = false
			err = fmt.Errorf("outbound update panicked: %v", r)
		}
	}()

	start, width := e.Block(index)
	e.store.EnsureLength(start + width)

	changes := e.Propose(index, strings.TrimSpace(label))
	if !e.store.Diff(changes) {
		return false, nil
	}

	payload := e.store.ApplyAndSerialize(changes)
	if e.write == nil {
		return false, nil
	}
	if err := e.write(payload); err != nil {
		return false, err
	}
	return true, nil
}

// State returns the current bitstring.
func (e *OutboundEngine) State() string {
	unlock := e.mtx.Lock()
	defer unlock()
	return e.store.String()
}
