package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelIndexMap(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		want  ChannelIndexMap
		mixed bool
	}{
		{"empty defaults to white", "", ChannelIndexMap{"white": 0}, false},
		{"sequential", "white;blue;red", ChannelIndexMap{"white": 0, "blue": 1, "red": 2}, false},
		{"explicit", "red:2;white:0;blue:1", ChannelIndexMap{"red": 2, "white": 0, "blue": 1}, false},
		{"explicit keeps gaps", "white:0;blue:5", ChannelIndexMap{"white": 0, "blue": 5}, false},
		{"explicit duplicates", "a:0;b:0", ChannelIndexMap{"a": 0, "b": 0}, false},
		{"mixed falls back", "white:0;blue", ChannelIndexMap{"white": 0, "blue": 1}, true},
		{"mixed discards every explicit index", "blue;red:5;white:7", ChannelIndexMap{"blue": 0, "red": 1, "white": 2}, true},
		{"non canonical index", "white:01;blue:1", ChannelIndexMap{"white": 0, "blue": 1}, true},
		{"negative index", "white:-1", ChannelIndexMap{"white": 0}, false},
		{"too many colons", "a:1:2;b:0", ChannelIndexMap{"a:1:2": 0, "b": 1}, true},
		{"case and spaces", " White ; BLUE ;; ", ChannelIndexMap{"white": 0, "blue": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, mixed := ParseChannelIndexMap(tt.spec)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.mixed, mixed)
		})
	}
}

func TestChannelIndexMap_Lookup(t *testing.T) {
	m, _ := ParseChannelIndexMap("white:0;blue:1")

	off, ok := m.Lookup("  BLUE ")
	require.True(t, ok)
	assert.Equal(t, 1, off)

	_, ok = m.Lookup("green")
	assert.False(t, ok)

	assert.Equal(t, []string{"white", "blue"}, m.Labels())
}

func TestParseChannelsPerElement(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"2", 2, false},
		{" 3 ", 3, false},
		{"0", 1, true},
		{"-2", 1, true},
		{"two", 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseChannelsPerElement(tt.value)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParsePropertyNames(t *testing.T) {
	assert.Equal(t, []string{"color"}, ParsePropertyNames("", "color"))
	assert.Equal(t, []string{"color"}, ParsePropertyNames("   ", "color"))
	assert.Equal(t, []string{"color", "background-color"}, ParsePropertyNames(" color\tbackground-color ", "color"))
}
