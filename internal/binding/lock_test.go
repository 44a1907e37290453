package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLockBinding(t *testing.T, tr *mockTransport, logger *mockLogger, door *mockTarget) Binding {
	t.Helper()
	b, err := New(Config{ID: "lockBinding", Location: "/dev/iohubx24-sim0", Flavor: FlavorLock}, Deps{Transport: tr, Logger: logger})
	require.NoError(t, err)
	if door != nil {
		require.NoError(t, door.observe(b, 0))
	}
	require.NoError(t, b.Activate())
	return b
}

func TestLockBinding_InitialSync(t *testing.T) {
	tests := []struct {
		name   string
		locked bool
		door   bool
		want   string
	}{
		{"unlocked entity", false, true, "0"},
		{"locked entity", true, true, "1"},
		{"no entity", false, false, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newMockTransport(true)
			var door *mockTarget
			if tt.door {
				door = newMockTarget("hotelDoor")
				if tt.locked {
					door.attrs[AttrLocked] = ""
				}
			}

			b := newLockBinding(t, tr, &mockLogger{}, door)

			assert.Equal(t, tt.want, b.(*lockBinding).State())
			assert.Equal(t, []string{tt.want}, tr.written())
			assert.Equal(t, 1, tr.subscriptions())
		})
	}
}

func TestLockBinding_RepeatedLineMutatesOnce(t *testing.T) {
	tr := newMockTransport(true)
	door := newMockTarget("hotelDoor")
	b := newLockBinding(t, tr, &mockLogger{}, door)
	before := door.mutationCount()

	b.OnData([]byte("1\n"), nil)
	b.OnData([]byte("1\n"), nil)

	assert.Equal(t, before+1, door.mutationCount())
	_, locked := door.Attribute(AttrLocked)
	assert.True(t, locked)
	assert.Contains(t, door.eventNames(), EventLocked)
	assert.Equal(t, []string{"0"}, tr.written(), "device state is not echoed back")
}

func TestLockBinding_OnlyFirstCharacterCounts(t *testing.T) {
	tr := newMockTransport(true)
	door := newMockTarget("hotelDoor")
	b := newLockBinding(t, tr, &mockLogger{}, door)

	b.OnData([]byte("10000\n\n"), nil)
	_, locked := door.Attribute(AttrLocked)
	assert.True(t, locked)

	b.OnData([]byte("01111\n"), nil)
	_, locked = door.Attribute(AttrLocked)
	assert.False(t, locked)
	assert.Equal(t, EventUnlocked, door.eventNames()[len(door.eventNames())-1])
}

func TestLockBinding_AttributeChangeWrites(t *testing.T) {
	tr := newMockTransport(true)
	door := newMockTarget("hotelDoor")
	newLockBinding(t, tr, &mockLogger{}, door)

	door.SetAttribute(AttrLocked, "")
	door.SetAttribute(AttrLocked, "")
	door.RemoveAttribute(AttrLocked)

	assert.Equal(t, []string{"0", "1", "0"}, tr.written())
}

func TestLockBinding_NotReadyDropsWrite(t *testing.T) {
	tr := newMockTransport(false)
	door := newMockTarget("hotelDoor")
	b := newLockBinding(t, tr, &mockLogger{}, door)

	door.SetAttribute(AttrLocked, "")
	assert.Empty(t, tr.written())
	assert.Equal(t, "0", b.(*lockBinding).State(), "a dropped write does not move the state")

	tr.setReady(true)
	door.SetAttribute(AttrLocked, "")
	assert.Equal(t, []string{"1"}, tr.written())
}

func TestLockBinding_WarnsWhenShared(t *testing.T) {
	logger := &mockLogger{}
	b, err := New(Config{ID: "lockBinding", Location: "/dev/iohubx24-sim0", Flavor: FlavorLock}, Deps{Transport: newMockTransport(true), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, b.Attach(0, newMockTarget("door1")))
	require.NoError(t, b.Attach(1, newMockTarget("door2")))

	require.NoError(t, b.Activate())
	assert.Equal(t, 1, logger.warnCount())
}
