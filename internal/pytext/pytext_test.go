package pytext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepr(t *testing.T) {
	tests := []struct {
		in, repr, ascii string
	}{
		{"abc", `'abc'`, `'abc'`},
		{"it's", `"it's"`, `"it's"`},
		{`a'b"c`, `'a\'b"c'`, `'a\'b"c'`},
		{"tab\there", `'tab\there'`, `'tab\there'`},
		{"é", `'é'`, `'\xe9'`},
		{"•", "'•'", `'\u2022'`},
		{"\x00", `'\x00'`, `'\x00'`},
		{`\`, `'\\'`, `'\\'`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.repr, Repr(tt.in))
			assert.Equal(t, tt.ascii, ASCII(tt.in))
		})
	}
}

func TestReprBytes(t *testing.T) {
	assert.Equal(t, `b'a\x00\xff'`, ReprBytes([]byte{'a', 0, 0xff}))
	assert.Equal(t, `b"'"`, ReprBytes([]byte("'")))
}

func TestEscapeRune(t *testing.T) {
	assert.Equal(t, "a", EscapeRune('a'))
	assert.Equal(t, "'", EscapeRune('\''))
	assert.Equal(t, `\\`, EscapeRune('\\'))
	assert.Equal(t, `\n`, EscapeRune('\n'))
	assert.Equal(t, `\xe9`, EscapeRune('é'))
	assert.Equal(t, `\U0001f600`, EscapeRune(0x1f600))
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("name"))
	assert.True(t, IsIdentifier("_x1"))
	assert.True(t, IsIdentifier("été"))
	assert.False(t, IsIdentifier("1x"))
	assert.False(t, IsIdentifier("a-b"))
	assert.False(t, IsIdentifier(""))
}

func TestLookupName(t *testing.T) {
	r, ok := LookupName("em dash")
	assert.True(t, ok)
	assert.Equal(t, '—', r)

	_, ok = LookupName("NO SUCH CHARACTER")
	assert.False(t, ok)
}
