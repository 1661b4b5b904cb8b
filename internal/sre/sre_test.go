package sre

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		pattern string
		isBytes bool
		flags   int
		want    string
	}{
		{"(", false, 0, "missing ), unterminated subpattern at position 0"},
		{")", false, 0, "unbalanced parenthesis at position 0"},
		{"*", false, 0, "nothing to repeat at position 0"},
		{"a**", false, 0, "multiple repeat at position 2"},
		{"[a", false, 0, "unterminated character set at position 0"},
		{"[z-a]", false, 0, "bad character range z-a at position 1"},
		{"a{3,2}", false, 0, "min repeat greater than max repeat at position 2"},
		{"(?P<1>x)", false, 0, "bad character in group name '1' at position 4"},
		{`\1`, false, 0, "invalid group reference 1 at position 1"},
		{`\400`, false, 0, `octal escape value \400 outside of range 0-0o377 at position 0`},
		{`\`, false, 0, "bad escape (end of pattern) at position 0"},
		{"a(?i)", false, 0, "global flags not at the start of the expression at position 1"},
		{"(?<=a+)", false, 0, "look-behind requires fixed-width pattern"},
		{"a\n(", false, 0, "missing ), unterminated subpattern at position 2 (line 2, column 1)"},
		{"a", false, FlagLocale, "cannot use LOCALE flag with a str pattern"},
		{"a", true, FlagUnicode, "cannot use UNICODE flag with a bytes pattern"},
		{"a", false, FlagASCII | FlagUnicode, "ASCII and UNICODE flags are incompatible"},
		{"(?L)a", false, 0, "bad inline flags: cannot use 'L' flag with a str pattern at position 3"},
		{"(?z)", false, 0, "unknown extension ?z at position 1"},
		{"(?iz)", false, 0, "unknown flag at position 3"},
		{"(?P=x)", false, 0, "unknown group name 'x' at position 4"},
		{"(a)(?(2)b)", false, 0, "invalid group reference 2 at position 6"},
		{"a*", false, FlagTemplate, "internal: unsupported template operator MAX_REPEAT"},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			_, err := Compile(tt.pattern, tt.isBytes, tt.flags, nil)
			require.Error(t, err)
			var reErr *Error
			require.ErrorAs(t, err, &reErr)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestCompileWarnings(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{`\q`, []string{`bad escape \q`}},
		{`[\A]`, []string{`bad escape \A`}},
		{"[[a]", []string{"Possible nested set at position 1"}},
		{"[a&&b]", []string{"Possible set intersection at position 2"}},
		{"[a||b]", []string{"Possible set union at position 2"}},
		{`a\.b`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			var diags Diagnostics
			_, err := Compile(tt.pattern, false, 0, &diags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, diags.Warnings)
		})
	}
}

func TestParseStructure(t *testing.T) {
	p, err := Compile("a|b", false, 0, nil)
	require.NoError(t, err)
	require.Len(t, p.Root.Items, 1)
	assert.Equal(t, In, p.Root.Items[0].Op)
	assert.Equal(t, []any{[]any{Literal, int('a')}, []any{Literal, int('b')}}, p.Root.Items[0].Arg)

	p, err = Compile("[^a]", false, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []Item{{Op: NotLiteral, Arg: int('a')}}, p.Root.Items)

	p, err = Compile("ab|ac", false, 0, nil)
	require.NoError(t, err)
	require.Len(t, p.Root.Items, 2)
	assert.Equal(t, Item{Op: Literal, Arg: int('a')}, p.Root.Items[0])
	assert.Equal(t, In, p.Root.Items[1].Op)

	p, err = Compile(`[\d-]`, false, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{Category, CategoryDigit}, []any{Literal, int('-')}}, p.Root.Items[0].Arg)

	p, err = Compile("(?:ab)c", false, 0, nil)
	require.NoError(t, err)
	assert.Len(t, p.Root.Items, 3)
}

func TestCompileFlagsAndGroups(t *testing.T) {
	p, err := Compile("(?x) a b # comment", false, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, FlagVerbose|FlagUnicode, p.Flags)
	assert.Len(t, p.Root.Items, 2)

	p, err = Compile("(?P<n>a)(b)", false, FlagIgnoreCase, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Groups)
	assert.Equal(t, map[string]int{"n": 1}, p.GroupIndex)
	assert.Equal(t, FlagIgnoreCase|FlagUnicode, p.Flags)

	p, err = Compile("a", true, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, p.Flags&FlagUnicode)
}

func TestWidth(t *testing.T) {
	tests := []struct {
		pattern string
		lo, hi  int
	}{
		{"abc", 3, 3},
		{"a{2,5}", 2, 5},
		{"a|bc", 1, 2},
		{"a*", 0, MaxRepeatCount},
		{"(a)\\1", 2, 2},
		{"^$", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			root, _, err := Parse(tt.pattern, false, 0, nil)
			require.NoError(t, err)
			lo, hi := root.Width()
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestParseTemplate(t *testing.T) {
	p, err := Compile("(?P<x>a)", false, 0, nil)
	require.NoError(t, err)

	tests := []struct {
		repl    string
		want    string
		warning string
	}{
		{`\1`, "", ""},
		{`\g<x>\g<0>`, "", ""},
		{`\2`, "invalid group reference 2 at position 1", ""},
		{`\g<y>`, "unknown group name 'y'", ""},
		{`\g<-1>`, "bad character in group name '-1' at position 3", ""},
		{`\g`, "missing < at position 2", ""},
		{`\q`, "", `bad escape \q`},
		{`\n\0\101`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.repl, func(t *testing.T) {
			var diags Diagnostics
			err := ParseTemplate(tt.repl, false, p, &diags)
			if tt.want == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tt.want)
			}
			if tt.warning != "" {
				assert.Equal(t, []string{tt.warning}, diags.Warnings)
			} else {
				assert.Empty(t, diags.Warnings)
			}
		})
	}
}

func TestOpcodeNames(t *testing.T) {
	assert.Equal(t, "MAX_REPEAT", MaxRepeat.Name())
	assert.Equal(t, "at_boundary", AtBoundary.String())
	assert.Equal(t, "UNKNOWN", Opcode(-1).Name())
}
