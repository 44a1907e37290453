package binding

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 120))
	assert.Equal(t, "hel", Truncate("hello", 3))
	assert.Equal(t, "héé", Truncate("héélo", 3), "limits count characters, not bytes")
	assert.Equal(t, "hello", Truncate("hello", 0))
}

func TestTextForwarder(t *testing.T) {
	var sent []string
	ready := true
	f := NewTextForwarder(5, func(p string) bool {
		if !ready {
			return false
		}
		sent = append(sent, p)
		return true
	}, WithKey("text"))

	assert.True(t, f.Forward("hello world"))
	assert.False(t, f.Forward("hello world"), "unchanged text is not resent")

	ready = false
	assert.False(t, f.Forward("bye"))
	last, ok := f.Last()
	assert.True(t, ok)
	assert.Equal(t, "hello world", last, "a dropped write keeps the last delivered text")

	ready = true
	assert.True(t, f.Forward("bye"))
	assert.Equal(t, []string{"text=hello", "text=bye"}, sent)
}

func TestMessageBinding(t *testing.T) {
	tr := newMockTransport(true)
	b, err := New(Config{ID: "lcdBinding", Location: "/dev/lcd-sim0", Flavor: FlavorMessage}, Deps{Transport: tr})
	require.NoError(t, err)
	door := newMockTarget("hotelDoor")
	require.NoError(t, door.observe(b, 0))
	require.NoError(t, b.Activate())

	require.Equal(t, []string{""}, tr.written(), "activation clears the display")

	long := strings.Repeat("x", 200)
	door.SetAttribute(AttrMessage, "Welcome to your room!")
	door.SetAttribute(AttrMessage, "Welcome to your room!")
	door.SetAttribute("title", "ignored")
	door.SetAttribute(AttrMessage, long)
	door.RemoveAttribute(AttrMessage)

	assert.Equal(t, []string{"", "Welcome to your room!", long[:MessageLimit], ""}, tr.written())
}

func TestAttributeBinding(t *testing.T) {
	tr := newMockTransport(true)
	cfg := Config{
		ID:       "lcdBinding",
		Location: "/dev/lcd-sim0",
		Flavor:   FlavorAttribute,
		Options:  map[string]string{OptAttributeName: "message"},
	}
	b, err := New(cfg, Deps{Transport: tr})
	require.NoError(t, err)

	door := newMockTarget("door")
	door.attrs["message"] = "Welcome to DOMIoT Hotel!"
	require.NoError(t, door.observe(b, 0))
	require.NoError(t, b.Activate())

	door.SetAttribute("message", "Welcome to DOMIoT Hotel!")
	door.SetAttribute("text", "ignored")
	door.RemoveAttribute("message")
	door.SetAttribute("message", strings.Repeat("y", 2000))

	assert.Equal(t, []string{
		"message=Welcome to DOMIoT Hotel!",
		"message=" + strings.Repeat("y", AttributeLimit),
	}, tr.written())
}

func TestAttributeBinding_DefaultName(t *testing.T) {
	tr := newMockTransport(true)
	b, err := New(Config{ID: "lcd", Location: "/dev/lcd-sim0", Flavor: FlavorAttribute}, Deps{Transport: tr})
	require.NoError(t, err)
	require.NoError(t, b.Activate())

	assert.Empty(t, tr.written(), "nothing to send without an entity")
	assert.Equal(t, "text", b.(*textBinding).Attribute())
}
