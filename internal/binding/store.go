package binding

import "sort"

// Channel values used by bit-oriented bindings.
const (
	ChannelOff rune = '0'
	ChannelOn  rune = '1'
)

// ChangeSet is a proposed set of channel values keyed by channel index.
type ChangeSet map[int]rune

// indices returns the change positions in ascending order.
func (c ChangeSet) indices() []int {
	idx := make([]int, 0, len(c))
	for i := range c {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// ChannelChange describes one channel whose value differs from what was
// last observed.
type ChannelChange struct {
	Index int
	Value rune

	// Previous is meaningful only when HadPrevious is true.
	Previous    rune
	HadPrevious bool
}

// Active reports whether the new value is the "on" value.
func (c ChannelChange) Active() bool {
	return c.Value == ChannelOn
}

// ChannelStore holds one character per channel.
//
// Outbound operations (EnsureLength, SetRange, ApplyAndSerialize) only ever
// grow the store. Reads past the end report "unset" rather than failing.
// Replace is the inbound snapshot operation: the store becomes exactly the
// last line observed from the device.
//
// Thread Safety: not safe for concurrent use; owned by one engine.
type ChannelStore struct {
	values []rune
}

// NewChannelStore returns an empty store.
func NewChannelStore() *ChannelStore {
	return &ChannelStore{}
}

// Len returns the number of tracked channels.
func (s *ChannelStore) Len() int {
	return len(s.values)
}

// Value returns the stored value at index, or false if unset.
func (s *ChannelStore) Value(index int) (rune, bool) {
	if index < 0 || index >= len(s.values) {
		return 0, false
	}
	return s.values[index], true
}

// EnsureLength pads the store with ChannelOff until it holds at least n
// channels. It never truncates.
func (s *ChannelStore) EnsureLength(n int) {
	for len(s.values) < n {
		s.values = append(s.values, ChannelOff)
	}
}

// SetRange writes width consecutive channels starting at start, taking each
// value from valueAt(offset).
func (s *ChannelStore) SetRange(start, width int, valueAt func(offset int) rune) {
	if start < 0 || width <= 0 {
		return
	}
	s.EnsureLength(start + width)
	for off := 0; off < width; off++ {
		s.values[start+off] = valueAt(off)
	}
}

// Diff reports whether any proposed value differs from the stored one.
// Unset positions always differ.
func (s *ChannelStore) Diff(changes ChangeSet) bool {
	for idx, v := range changes {
		cur, ok := s.Value(idx)
		if !ok || cur != v {
			return true
		}
	}
	return false
}

// ApplyAndSerialize writes the proposed values and returns the whole store
// as one string, which is the outbound wire payload.
func (s *ChannelStore) ApplyAndSerialize(changes ChangeSet) string {
	for _, idx := range changes.indices() {
		if idx < 0 {
			continue
		}
		s.EnsureLength(idx + 1)
		s.values[idx] = changes[idx]
	}
	return s.String()
}

// DiffScan compares an inbound line with the stored values.
//
// Only positions for which bound returns true are considered. A position is
// reported when there was no previous value or the value changed. The store
// itself is not modified; call Replace afterwards.
func (s *ChannelStore) DiffScan(line string, bound func(index int) bool) []ChannelChange {
	var changes []ChannelChange
	for i, v := range []rune(line) {
		if bound != nil && !bound(i) {
			continue
		}
		prev, ok := s.Value(i)
		if ok && prev == v {
			continue
		}
		changes = append(changes, ChannelChange{
			Index:       i,
			Value:       v,
			Previous:    prev,
			HadPrevious: ok,
		})
	}
	return changes
}

// Replace makes the store hold exactly the given line.
func (s *ChannelStore) Replace(line string) {
	s.values = []rune(line)
}

// String returns the stored values concatenated.
func (s *ChannelStore) String() string {
	return string(s.values)
}
