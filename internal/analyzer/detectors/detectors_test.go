package detectors

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	actx "pydiatra/internal/context"
	"pydiatra/internal/pyast"
	"pydiatra/internal/refdata"
	"pydiatra/internal/sre"
)

// recorder collects emitted findings as "kind arg..." strings.
type recorder struct {
	got []string
}

func (r *recorder) emit(kind string, args ...any) {
	parts := []string{kind}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	r.got = append(r.got, strings.Join(parts, " "))
}

func parseExpr(t *testing.T, src string) pyast.Node {
	t.Helper()
	n, err := pyast.ParseExpr(context.Background(), src)
	require.NoError(t, err)
	return n
}

func parseCall(t *testing.T, src string) *pyast.Call {
	t.Helper()
	call, ok := parseExpr(t, src).(*pyast.Call)
	require.True(t, ok, "%s is not a call", src)
	return call
}

func TestRegexpDetector(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"clean pattern", `re.compile('a+b')`, nil},
		{"duplicate range", `re.compile('[aa]')`, []string{"regexp-duplicate-range a"}},
		{"duplicate reported once", `re.compile('[aabb]')`, []string{"regexp-duplicate-range a"}},
		{"overlapping ranges", `re.compile('[a-zA-Zb]')`, []string{"regexp-overlapping-ranges a-z b"}},
		{"adjacent ranges", `re.compile('[a-mn-z]')`, nil},
		{"redundant multiline", `re.compile('a', re.I | re.M)`, []string{"regexp-redundant-flag re.MULTILINE"}},
		{"multiline anchor", `re.compile('^a', re.M)`, nil},
		{"multiline keyword", `re.search('a', s, flags=re.MULTILINE)`, []string{"regexp-redundant-flag re.MULTILINE"}},
		{"redundant dotall", `re.compile('a', re.S)`, []string{"regexp-redundant-flag re.DOTALL"}},
		{"dotall any", `re.compile('.', re.S)`, nil},
		{"redundant ascii", `re.compile('a', re.A)`, []string{"regexp-redundant-flag re.ASCII"}},
		{"ascii word", `re.compile(r'\w', re.A)`, nil},
		{"ascii boundary", `re.compile(r'\bx', re.A)`, nil},
		{"unicode str", `re.compile('a', re.U)`, nil},
		{"unicode bytes", `re.compile(b'a', re.U)`, []string{"regexp-syntax-error cannot use UNICODE flag with a bytes pattern"}},
		{"locale digit", `re.compile(br'\d', re.L)`, []string{"regexp-redundant-flag re.LOCALE"}},
		{"locale word", `re.compile(br'\w', re.L)`, nil},
		{"incompatible pair", `re.compile('a', re.A | re.U)`, []string{"regexp-incompatible-flags re.ASCII re.UNICODE"}},
		{"incompatible locale", `re.compile(b'a', re.A | re.L)`, []string{"regexp-incompatible-flags re.ASCII re.LOCALE"}},
		{"str with locale", `re.compile('a', re.L)`, []string{"regexp-incompatible-flags str re.LOCALE"}},
		{"syntax error", `re.compile('(')`, []string{"regexp-syntax-error missing ), unterminated subpattern at position 0"}},
		{"bad escape", `re.compile(r'\q')`, []string{`regexp-bad-escape \q`}},
		{"nested set", `re.compile('[[a]')`, []string{"regexp-syntax-warning Possible nested set at position 1"}},
		{"misplaced count", `re.sub('a', 'b', s, re.I)`, []string{"regexp-misplaced-flags-argument count re.I"}},
		{"misplaced maxsplit", `re.split('a', s, re.I | re.M)`, []string{"regexp-misplaced-flags-argument maxsplit re.I | re.M"}},
		{"numeric count", `re.sub('a', 'b', s, 1)`, nil},
		{"bad template group", `re.sub('(a)', r'\2', s)`, []string{"regexp-syntax-error invalid group reference 2 at position 1"}},
		{"template type mismatch", `re.sub('(a)', b'\\2', s)`, nil},
		{"template group", `re.sub('(a)', r'\1', s)`, nil},
		{"duplicate then redundant", `re.compile('[aa]', re.M)`, []string{
			"regexp-duplicate-range a",
			"regexp-redundant-flag re.MULTILINE",
		}},
		{"not re", `foo.compile('[aa]')`, nil},
		{"unknown function", `re.escape('[aa]')`, nil},
		{"plain call", `compile('[aa]')`, nil},
		{"variable pattern", `re.compile(p)`, nil},
		{"starred argument", `re.compile(*args)`, nil},
		{"double star keywords", `re.compile('[aa]', **kw)`, nil},
		{"unknown flags", `re.compile('[aa]', flags)`, nil},
	}

	d := NewRegexpDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			ac := actx.NewAnalysisContext("t.py", nil)
			err := d.Check(ac, parseCall(t, tt.src), rec.emit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.got)
		})
	}
}

func TestRegexpDetectorAlias(t *testing.T) {
	d := NewRegexpDetector()
	ac := actx.NewAnalysisContext("t.py", nil)

	var rec recorder
	require.NoError(t, d.Check(ac, parseCall(t, `regex.compile('[aa]')`), rec.emit))
	assert.Empty(t, rec.got)

	ac.BindImport("re", "regex")
	ac.BindImport("os", "regex2")
	require.NoError(t, d.Check(ac, parseCall(t, `regex.compile('[aa]')`), rec.emit))
	require.NoError(t, d.Check(ac, parseCall(t, `regex2.compile('[aa]')`), rec.emit))
	assert.Equal(t, []string{"regexp-duplicate-range a"}, rec.got)
}

func TestPatternWalkerRejectsUnknownOperands(t *testing.T) {
	var rec recorder
	w := newPatternWalker(false, rec.emit)

	err := w.generic(3.5)
	var opErr *sre.OperandError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 3.5, opErr.Value)

	assert.Error(t, w.visitIn("x"))
	assert.Error(t, w.visitIn([]any{[]any{sre.Range, []any{1}}}))
	assert.Error(t, w.visitAt(7))
	assert.Error(t, w.visitAny(0))
	assert.NoError(t, w.generic([]any{1, "x", nil, sre.Literal}))
}

func TestCharRangeString(t *testing.T) {
	tests := []struct {
		r    charRange
		want string
	}{
		{charRange{'a', 'a'}, "a"},
		{charRange{'a', 'z'}, "a-z"},
		{charRange{0, 0x1f}, `\x00-\x1f`},
		{charRange{0xe9, 0xe9}, `\xe9`},
		{charRange{0xd800, 0xdfff}, `\ud800-\udfff`},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.String())
		})
	}
}

func TestFormattingDetectorPercent(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{`'%s %s' % ('a', 'b')`, nil},
		{`'%s %s' % ('a',)`, []string{"string-formatting-error not enough arguments for format string"}},
		{`'%s' % ('a', 'b')`, []string{"string-formatting-error not all arguments converted during string formatting"}},
		{`'%(x)s' % {'y': 1}`, []string{"string-formatting-error missing key 'x'"}},
		{`'%(x)s' % {'x': 1}`, nil},
		{`'%(x)s' % {k: 1}`, nil},
		{`'%s %s' % (*a,)`, nil},
		{`'%d' % 42`, nil},
		{`'%s' % x`, nil},
		{`x % ('a',)`, nil},
		{`'%s' + 'a'`, nil},
	}
	d := NewFormattingDetector()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			op, ok := parseExpr(t, tt.src).(*pyast.BinOp)
			require.True(t, ok)
			var rec recorder
			d.CheckPercent(op, rec.emit)
			assert.Equal(t, tt.want, rec.got)
		})
	}
}

func TestFormattingDetectorBrace(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{`'{0} {x!r}'.format(1, x=2)`, nil},
		{`'{'.format()`, []string{"string-formatting-error Single '{' encountered in format string"}},
		{`'{0!x} {1!y}'.format(1, 2)`, []string{
			"string-formatting-error unknown conversion specifier x",
			"string-formatting-error unknown conversion specifier y",
		}},
		{`s.format(1)`, nil},
		{`'{'.join(x)`, nil},
	}
	d := NewFormattingDetector()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			var rec recorder
			d.CheckBrace(parseCall(t, tt.src), rec.emit)
			assert.Equal(t, tt.want, rec.got)
		})
	}
}

func TestCodeCopyDetector(t *testing.T) {
	data, err := refdata.Default()
	require.NoError(t, err)

	d := NewCodeCopyDetector()
	ac := actx.NewAnalysisContext("t.py", data)
	var rec recorder

	d.Check(ac, "plain text", rec.emit)
	assert.Empty(t, rec.got)
	assert.False(t, ac.CodeCopyFound)

	d.Check(ac, "Utilities for writing code that runs on Python 2 and 3", rec.emit)
	d.Check(ac, "jQuery v3.6.0", rec.emit)
	assert.Equal(t, []string{"embedded-code-copy python-six"}, rec.got)
	assert.True(t, ac.CodeCopyFound)
}

func TestDetectorNames(t *testing.T) {
	assert.NotEmpty(t, NewRegexpDetector().Name())
	assert.NotEmpty(t, NewFormattingDetector().Name())
	assert.NotEmpty(t, NewCodeCopyDetector().Name())
}
