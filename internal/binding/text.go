package binding

import (
	"sync"
	"unicode/utf8"
)

// Truncation limits for text bindings, in characters.
const (
	MessageLimit   = 120
	AttributeLimit = 1024
)

// TextForwarder writes a single text value to the device, suppressing
// repeats of the last text it delivered.
//
// The last-sent value is updated only after a successful write, so a change
// dropped while the transport was down is retried on the next change.
type TextForwarder struct {
	mu sync.Mutex

	limit     int
	key       string
	skipEmpty bool
	write     func(payload string) bool

	sent bool
	last string
}

// TextOption configures a TextForwarder.
type TextOption func(*TextForwarder)

// WithKey frames payloads as key=value.
func WithKey(key string) TextOption {
	return func(f *TextForwarder) { f.key = key }
}

// WithSkipEmpty never forwards empty text.
func WithSkipEmpty() TextOption {
	return func(f *TextForwarder) { f.skipEmpty = true }
}

// NewTextForwarder creates a forwarder that truncates to limit characters
// and delivers through write. write reports whether the payload was sent.
func NewTextForwarder(limit int, write func(payload string) bool, opts ...TextOption) *TextForwarder {
	f := &TextForwarder{limit: limit, write: write}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward writes text unless it matches the last delivered text.
// It returns whether a write went out.
func (f *TextForwarder) Forward(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.skipEmpty && text == "" {
		return false
	}
	if f.sent && text == f.last {
		return false
	}

	if !f.write(f.Payload(text)) {
		return false
	}
	f.sent = true
	f.last = text
	return true
}

// Payload builds the wire form of text without sending it.
func (f *TextForwarder) Payload(text string) string {
	text = Truncate(text, f.limit)
	if f.key == "" {
		return text
	}
	return f.key + "=" + text
}

// Last returns the last delivered text and whether anything was delivered.
func (f *TextForwarder) Last() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.sent
}

// Truncate cuts s to at most limit characters. A limit below 1 disables
// truncation.
func Truncate(s string, limit int) string {
	if limit < 1 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
