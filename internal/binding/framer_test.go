package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFramer_Separators(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		lines  []string
		buffer string
	}{
		{"lf", "010\n110\n", []string{"010", "110"}, ""},
		{"crlf", "010\r\n110\r\n", []string{"010", "110"}, ""},
		{"bare cr", "010\r110\r", []string{"010", "110"}, ""},
		{"lf cr is two separators", "a\n\rb", []string{"a", ""}, "b"},
		{"trailing fragment", "01\n10", []string{"01"}, "10"},
		{"no separator", "0101", nil, "0101"},
		{"empty lines", "\n\n", []string{"", ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewLineFramer()
			lines, err := f.Feed([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.lines, lines)
			assert.Equal(t, tt.buffer, f.Buffered())
		})
	}
}

// Any chunking of the same stream yields the same lines and the same
// trailing fragment.
func TestLineFramer_ChunkingInvariant(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   []string
		rest   string
	}{
		{
			name:   "ascii",
			stream: "a\nbb\r\ncc\rdd\n\reee",
			want:   []string{"a", "bb", "cc", "dd", ""},
			rest:   "eee",
		},
		{
			name:   "multi-byte runes",
			stream: "abé\r\n10\n€uro\r日本\n𝄞x",
			want:   []string{"abé", "10", "€uro", "日本"},
			rest:   "𝄞x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for size := 1; size <= len(tt.stream); size++ {
				f := NewLineFramer()
				var got []string
				for start := 0; start < len(tt.stream); start += size {
					end := min(start+size, len(tt.stream))
					lines, err := f.Feed([]byte(tt.stream[start:end]))
					require.NoError(t, err, "chunk size %d", size)
					got = append(got, lines...)
				}
				assert.Equal(t, tt.want, got, "chunk size %d", size)
				assert.Equal(t, tt.rest, f.Buffered(), "chunk size %d", size)
			}
		})
	}
}

func TestLineFramer_SplitRune(t *testing.T) {
	f := NewLineFramer()

	lines, err := f.Feed([]byte("ab\xc3"))
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, "ab\xc3", f.Buffered())

	lines, err = f.Feed([]byte("\xa9\n10\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abé", "10"}, lines)
	assert.Empty(t, f.Buffered())
}

func TestLineFramer_InvalidAfterSplitRune(t *testing.T) {
	f := NewLineFramer()
	_, err := f.Feed([]byte("ab\xe2\x82"))
	require.NoError(t, err)

	lines, err := f.Feed([]byte("x\n"))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Nil(t, lines)
	assert.Equal(t, "ab\xe2\x82", f.Buffered())

	lines, err = f.Feed([]byte("\xac\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ab€"}, lines)
}

func TestLineFramer_SplitCRLF(t *testing.T) {
	f := NewLineFramer()

	lines, err := f.Feed([]byte("01\r"))
	require.NoError(t, err)
	assert.Equal(t, []string{"01"}, lines)

	lines, err = f.Feed([]byte("\n10\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, lines, "a split \\r\\n is a single separator")
}

func TestLineFramer_InvalidUTF8(t *testing.T) {
	f := NewLineFramer()
	_, err := f.Feed([]byte("ab"))
	require.NoError(t, err)

	lines, err := f.Feed([]byte{0xff, '\n'})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Nil(t, lines)
	assert.Equal(t, "ab", f.Buffered())
}

func TestLineFramer_Reset(t *testing.T) {
	f := NewLineFramer()
	_, _ = f.Feed([]byte("partial\r"))
	f.Reset()

	lines, err := f.Feed([]byte("\nnext\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "next"}, lines)
}
