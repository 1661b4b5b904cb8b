package pyformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name   string
		format string
		args   any
		want   string
	}{
		{"ok tuple", "%s=%d", []any{"a", 0}, ""},
		{"ok single", "%s", "x", ""},
		{"ok escape", "100%%", []any{}, ""},
		{"ok dict", "%(x)s %(y)d", map[string]any{"x": "a", "y": 0}, ""},
		{"ok width", "%-*.*f", []any{0, 0, 0}, ""},
		{"ok length modifier", "%ld", 0, ""},
		{"dict as single arg", "%s", map[string]any{}, ""},
		{"too few", "%s %s", []any{"a"}, "not enough arguments for format string"},
		{"too many", "%s", []any{"a", "b"}, "not all arguments converted during string formatting"},
		{"single unused", "abc", "x", "not all arguments converted during string formatting"},
		{"needs mapping", "%(x)s", []any{"a"}, "format requires a mapping"},
		{"incomplete", "abc %", []any{}, "incomplete format"},
		{"incomplete key", "%(x", map[string]any{}, "incomplete format key"},
		{"bad char", "%y", []any{0}, "unsupported format character 'y' (0x79) at index 1"},
		{"bad char non ascii", "%é", []any{0}, "unsupported format character '?' (0xe9) at index 1"},
		{"int from str", "%d", "x", "%d format: a real number is required, not str"},
		{"hex from str", "%x", []any{"x"}, "%x format: an integer is required, not str"},
		{"float from dict", "%f", map[string]any{}, "must be real number, not dict"},
		{"char", "%c", []any{"ab"}, "%c requires int or char"},
		{"star", "%*d", []any{"a", 0}, "* wants int"},
		{"dict twice", "%s %s", map[string]any{}, "not enough arguments for format string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Percent(tt.format, tt.args)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.want)
		})
	}
}

func TestPercentMissingKey(t *testing.T) {
	err := Percent("%(x)s", map[string]any{"y": "a"})
	var keyErr *KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "x", keyErr.Key)
	assert.Equal(t, "'x'", err.Error())
}

func TestParseBrace(t *testing.T) {
	fields, err := ParseBrace("a{0}b{x!r:>{w}}c{{d}}")
	require.NoError(t, err)
	assert.Equal(t, []Field{
		{Literal: "a", HasField: true, Name: "0"},
		{Literal: "b", HasField: true, Name: "x", Conversion: 'r', Spec: ">{w}"},
		{Literal: "c{"},
		{Literal: "d}"},
	}, fields)

	fields, err = ParseBrace("{a[}]}")
	require.NoError(t, err)
	assert.Equal(t, "a[}]", fields[0].Name)
}

func TestParseBraceErrors(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"}", "Single '}' encountered in format string"},
		{"a}b", "Single '}' encountered in format string"},
		{"{", "Single '{' encountered in format string"},
		{"{a", "expected '}' before end of string"},
		{"{a{", "unexpected '{' in field name"},
		{"{!", "end of string while looking for conversion specifier"},
		{"{!r", "unmatched '{' in format spec"},
		{"{!rx}", "expected ':' after conversion specifier"},
		{"{:", "unmatched '{' in format spec"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			_, err := ParseBrace(tt.format)
			require.EqualError(t, err, tt.want)
		})
	}
}

func TestCheckConversion(t *testing.T) {
	for _, c := range []rune{0, 's', 'r', 'a'} {
		assert.NoError(t, CheckConversion(c))
	}
	assert.EqualError(t, CheckConversion('x'), "unknown conversion specifier x")
}
