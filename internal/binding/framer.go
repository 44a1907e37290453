package binding

import (
	"strings"
	"unicode/utf8"
)

// LineFramer reassembles newline-delimited messages from a byte stream.
//
// Lines end at "\n", "\r\n" or a bare "\r". A "\r\n" pair split across two
// chunks still counts as one separator. The fragment after the last
// separator is kept until a later chunk completes it.
//
// Thread Safety: not safe for concurrent use; owned by one engine.
type LineFramer struct {
	buf string

	// pendingCR is set when the previous chunk ended on '\r', so a '\n'
	// opening the next chunk belongs to the same separator.
	pendingCR bool

	// partial holds the leading bytes of a multi-byte rune cut off at the
	// end of the previous chunk.
	partial []byte
}

// NewLineFramer returns an empty framer.
func NewLineFramer() *LineFramer {
	return &LineFramer{}
}

// Feed appends a chunk and returns every line it completes, in order.
//
// A chunk without separators returns no lines and grows the buffer. A rune
// split across chunks is held back until its remaining bytes arrive. A chunk
// holding invalid UTF-8 returns ErrInvalidEncoding and leaves the buffer
// exactly as it was.
func (f *LineFramer) Feed(chunk []byte) ([]string, error) {
	if len(chunk) == 0 {
		return nil, nil
	}

	joined := append(append([]byte(nil), f.partial...), chunk...)
	complete, partial := splitPartialRune(joined)
	if !utf8.Valid(complete) {
		return nil, ErrInvalidEncoding
	}
	f.partial = partial
	if len(complete) == 0 {
		f.pendingCR = false
		return nil, nil
	}

	data := string(complete)
	if f.pendingCR && data[0] == '\n' {
		data = data[1:]
	}
	f.pendingCR = false

	buf := f.buf + data
	var lines []string
	start := 0
	for i := 0; i < len(buf); i++ {
		switch buf[i] {
		case '\n':
			lines = append(lines, buf[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, buf[start:i])
			if i+1 < len(buf) && buf[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}

	if strings.HasSuffix(buf, "\r") {
		f.pendingCR = true
	}
	f.buf = buf[start:]

	return lines, nil
}

// splitPartialRune separates a trailing incomplete rune from b. Bytes that
// can never form a rune stay in complete so validation rejects them.
func splitPartialRune(b []byte) (complete, partial []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax+1; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i], b[i:]
	}
	return b, nil
}

// Buffered returns the incomplete trailing fragment, including any bytes of
// a rune still waiting for the rest of its encoding.
func (f *LineFramer) Buffered() string {
	return f.buf + string(f.partial)
}

// Reset drops any buffered fragment.
func (f *LineFramer) Reset() {
	f.buf = ""
	f.partial = nil
	f.pendingCR = false
}
