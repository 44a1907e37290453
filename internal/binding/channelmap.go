package binding

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultChannelLabel is the only label when no mapping is configured.
const DefaultChannelLabel = "white"

// ChannelIndexMap maps a lowercase symbolic label (a colour name, usually)
// to a channel offset inside an entity's channel block.
type ChannelIndexMap map[string]int

// Lookup resolves a label case-insensitively.
func (m ChannelIndexMap) Lookup(label string) (int, bool) {
	offset, ok := m[strings.ToLower(strings.TrimSpace(label))]
	return offset, ok
}

// Labels returns the labels ordered by offset, then name.
func (m ChannelIndexMap) Labels() []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if m[labels[i]] != m[labels[j]] {
			return m[labels[i]] < m[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// channelEntry is one parsed "label" or "label:index" entry.
type channelEntry struct {
	label    string
	index    int
	explicit bool
}

// ParseChannelIndexMap parses a ";"-separated mapping of labels to channel
// offsets.
//
// Three forms are accepted:
//
//	"white;blue;red"         sequential offsets 0, 1, 2
//	"red:2;white:0;blue:1"   explicit offsets used as written
//	"white:0;blue;red:2"     mixed: every explicit offset is dropped and the
//	                         entries get sequential offsets 0, 1, 2
//
// An offset counts as explicit only when it is a canonical non-negative
// integer ("01", "+1" and "1.0" are not). Duplicate explicit offsets are
// kept as configured. The mixed flag reports the fallback case; it is false
// when no entry carried an offset at all.
//
// An empty string yields {"white": 0}.
func ParseChannelIndexMap(spec string) (m ChannelIndexMap, mixed bool) {
	m = make(ChannelIndexMap)
	if spec == "" {
		m[DefaultChannelLabel] = 0
		return m, false
	}

	var entries []channelEntry
	allExplicit := true
	someExplicit := false

	for _, raw := range strings.Split(spec, ";") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		parsed := parseChannelEntry(entry)
		if parsed.explicit {
			someExplicit = true
		} else {
			allExplicit = false
		}
		entries = append(entries, parsed)
	}

	if allExplicit && len(entries) > 0 {
		for _, e := range entries {
			m[strings.ToLower(e.label)] = e.index
		}
		return m, false
	}

	for i, e := range entries {
		m[strings.ToLower(e.label)] = i
	}
	return m, someExplicit && !allExplicit
}

func parseChannelEntry(entry string) channelEntry {
	parts := strings.Split(entry, ":")
	if len(parts) != 2 {
		return channelEntry{label: entry}
	}

	label := strings.TrimSpace(parts[0])
	indexStr := strings.TrimSpace(parts[1])
	index, err := strconv.Atoi(indexStr)
	if err != nil || index < 0 || strconv.Itoa(index) != indexStr {
		return channelEntry{label: label}
	}
	return channelEntry{label: label, index: index, explicit: true}
}

// ParseChannelsPerElement parses the channels-per-element attribute.
// Empty means 1. Anything that is not a positive integer is rejected.
func ParseChannelsPerElement(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 1, err
	}
	if n < 1 {
		return 1, strconv.ErrRange
	}
	return n, nil
}

// ParsePropertyNames splits a whitespace-separated list of watched names.
// An empty result falls back to def.
func ParsePropertyNames(value string, def ...string) []string {
	names := strings.Fields(value)
	if len(names) == 0 {
		return append([]string(nil), def...)
	}
	return names
}
