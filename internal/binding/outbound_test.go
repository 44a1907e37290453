package binding

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newColorBinding(t *testing.T, tr *mockTransport, logger *mockLogger, opts map[string]string, n int) (Binding, []*mockTarget) {
	t.Helper()
	b, err := New(Config{ID: "lights", Location: "/dev/ohubx24-sim0", Flavor: FlavorColor, Options: opts}, Deps{Transport: tr, Logger: logger})
	require.NoError(t, err)

	targets := make([]*mockTarget, n)
	for i := range targets {
		targets[i] = newMockTarget("light")
		require.NoError(t, b.Attach(i, targets[i]))
	}
	require.NoError(t, b.Activate())
	return b, targets
}

func TestOutboundEngine_Scenario(t *testing.T) {
	var writes []string
	channels, mixed := ParseChannelIndexMap("white:0;blue:1")
	require.False(t, mixed)

	e := NewOutboundEngine(channels, 2, func(p string) error {
		writes = append(writes, p)
		return nil
	})
	e.store.EnsureLength(4)

	assert.Equal(t, ChangeSet{2: ChannelOff, 3: ChannelOn}, e.Propose(1, "blue"))

	wrote, err := e.Update(1, "blue")
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, []string{"0001"}, writes)
}

func TestOutboundEngine_Idempotent(t *testing.T) {
	var writes []string
	channels, _ := ParseChannelIndexMap("white:0;blue:1")
	e := NewOutboundEngine(channels, 2, func(p string) error {
		writes = append(writes, p)
		return nil
	})

	_, err := e.Update(1, "blue")
	require.NoError(t, err)
	wrote, err := e.Update(1, "BLUE ")
	require.NoError(t, err)

	assert.False(t, wrote)
	assert.Equal(t, []string{"0001"}, writes)
}

func TestOutboundEngine_UnknownAndOutOfBlockLabels(t *testing.T) {
	var writes []string
	channels, _ := ParseChannelIndexMap("white:0;blue:1;red:2")
	e := NewOutboundEngine(channels, 2, func(p string) error {
		writes = append(writes, p)
		return nil
	})

	_, _ = e.Update(0, "blue")
	_, _ = e.Update(0, "green")
	_, _ = e.Update(0, "red")

	assert.Equal(t, []string{"01", "00"}, writes, "red sits outside the block, so the block is all off")
}

func TestOutboundEngine_ReleasesLockOnFailure(t *testing.T) {
	channels, _ := ParseChannelIndexMap("")

	panicking := NewOutboundEngine(channels, 1, func(string) error { panic("boom") })
	_, err := panicking.Update(0, "white")
	assert.Error(t, err)
	assert.False(t, panicking.mtx.Locked())

	failing := NewOutboundEngine(channels, 1, func(string) error { return errors.New("write failed") })
	_, err = failing.Update(0, "white")
	assert.Error(t, err)
	assert.False(t, failing.mtx.Locked())

	_, err = failing.Update(-1, "white")
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestOutboundEngine_ConcurrentUpdates(t *testing.T) {
	var (
		mu     sync.Mutex
		writes int
	)
	channels, _ := ParseChannelIndexMap("white:0;blue:1")
	e := NewOutboundEngine(channels, 2, func(string) error {
		mu.Lock()
		writes++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = e.Update(i, "blue")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, strings.Repeat("01", 10), e.State())
	assert.Equal(t, 10, writes)
}

func TestColorBinding_StyleChanged(t *testing.T) {
	tr := newMockTransport(true)
	opts := map[string]string{
		OptChannelsPerElement: "2",
		OptColorsChannel:      "white:0;blue:1",
	}
	b, targets := newColorBinding(t, tr, &mockLogger{}, opts, 2)

	b.StyleChanged(1, targets[1], "color", "blue")
	b.StyleChanged(1, targets[1], "color", "blue")
	b.StyleChanged(0, targets[0], "color", "White")
	b.StyleChanged(0, targets[0], "background-color", "blue")

	assert.Equal(t, []string{"0001", "1001"}, tr.written())
}

func TestColorBinding_Filters(t *testing.T) {
	tr := newMockTransport(false)
	opts := map[string]string{OptColorPropertyNames: "background-color border-color"}
	b, targets := newColorBinding(t, tr, &mockLogger{}, opts, 1)

	b.StyleChanged(0, targets[0], "background-color", "white")
	assert.Empty(t, tr.written(), "writes are dropped while the transport is not ready")

	tr.setReady(true)
	b.StyleChanged(0, targets[0], "color", "white")
	b.StyleChanged(5, targets[0], "border-color", "white")
	assert.Empty(t, tr.written())

	b.StyleChanged(0, targets[0], "border-color", "white")
	assert.Equal(t, []string{"1"}, tr.written())
}

func TestColorBinding_ConfigWarnings(t *testing.T) {
	const (
		badCPE = "invalid channels-per-element, using 1"
		mixed  = "mixed format in colors-channel"
	)

	tests := []struct {
		name string
		opts map[string]string
		want []string
	}{
		{
			name: "bad channels-per-element and mixed map",
			opts: map[string]string{OptChannelsPerElement: "zero", OptColorsChannel: "white:0;blue"},
			want: []string{badCPE, mixed},
		},
		{
			name: "bad channels-per-element only",
			opts: map[string]string{OptChannelsPerElement: "zero", OptColorsChannel: "white:0;blue:1"},
			want: []string{badCPE},
		},
		{
			name: "mixed map only",
			opts: map[string]string{OptColorsChannel: "white;blue:1"},
			want: []string{mixed},
		},
		{
			name: "sequential colors-channel",
			opts: map[string]string{OptColorsChannel: "white;blue;red"},
		},
		{
			name: "explicit indices",
			opts: map[string]string{OptChannelsPerElement: "3", OptColorsChannel: "white:2;blue:0;red:1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			b, _ := newColorBinding(t, newMockTransport(true), logger, tt.opts, 1)
			assert.True(t, b.Active(), "configuration warnings never block activation")

			got := logger.warnings()
			require.Len(t, got, len(tt.want), "warnings: %q", got)
			for i, want := range tt.want {
				assert.True(t, strings.HasPrefix(got[i], want), "warning %d = %q, want prefix %q", i, got[i], want)
			}
		})
	}
}

func TestColorBinding_MixedMapFallsBackToSequential(t *testing.T) {
	tr := newMockTransport(true)
	opts := map[string]string{
		OptChannelsPerElement: "zero",
		OptColorsChannel:      "white:0;blue",
	}
	b, targets := newColorBinding(t, tr, &mockLogger{}, opts, 1)

	b.StyleChanged(0, targets[0], "color", "blue")
	assert.Empty(t, tr.written(), "blue resolves to offset 1, outside the single channel block")

	b.StyleChanged(0, targets[0], "color", "white")
	assert.Equal(t, []string{"1"}, tr.written())
}
