package pyast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*Module, []Warning) {
	t.Helper()
	mod, warnings, err := Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	return mod, warnings
}

func TestParseStatements(t *testing.T) {
	mod, _ := parse(t, `import os, PIL.Image as img
from .. import sibling
from Image import open

def f(x):
    raise ValueError("bad") from None

class C(object):
    pass
`)
	require.Len(t, mod.Body, 5)

	imp := mod.Body[0].(*Import)
	assert.Equal(t, 1, imp.Lineno())
	assert.Equal(t, []Alias{{Name: "os"}, {Name: "PIL.Image", AsName: "img"}}, imp.Names)

	rel := mod.Body[1].(*ImportFrom)
	assert.Equal(t, 2, rel.Level)
	assert.Empty(t, rel.Module)
	assert.Equal(t, []Alias{{Name: "sibling"}}, rel.Names)

	from := mod.Body[2].(*ImportFrom)
	assert.Equal(t, "Image", from.Module)
	assert.Equal(t, 0, from.Level)
	assert.Equal(t, []Alias{{Name: "open"}}, from.Names)

	fn := mod.Body[3].(*FunctionDef)
	assert.Equal(t, DefFunction, fn.Kind)
	assert.Equal(t, "f", fn.Name)
	require.Len(t, fn.Body, 1)
	r := fn.Body[0].(*Raise)
	assert.Equal(t, 6, r.Lineno())
	assert.IsType(t, &Call{}, r.Exc)
	assert.IsType(t, &Constant{}, r.Cause)

	cls := mod.Body[4].(*FunctionDef)
	assert.Equal(t, DefClass, cls.Kind)
	assert.Equal(t, "C", cls.Name)
}

func TestParseTry(t *testing.T) {
	mod, _ := parse(t, `try:
    import a
except (IOError, OSError) as exc:
    raise
except:
    pass
else:
    x = 1
finally:
    y = 2
`)
	require.Len(t, mod.Body, 1)
	tr := mod.Body[0].(*Try)
	require.Len(t, tr.Body, 1)
	require.Len(t, tr.Handlers, 2)

	h := tr.Handlers[0]
	assert.Equal(t, 3, h.Lineno())
	assert.Equal(t, "exc", h.Name)
	assert.IsType(t, &Tuple{}, h.Type)
	require.Len(t, h.Body, 1)
	assert.Nil(t, h.Body[0].(*Raise).Exc)

	assert.Nil(t, tr.Handlers[1].Type)
	assert.Len(t, tr.Orelse, 1)
	assert.Len(t, tr.Finalbody, 1)
}

func TestParseExpressions(t *testing.T) {
	ctx := context.Background()

	n, err := ParseExpr(ctx, `re.compile(r"\d+", flags=re.I | re.M)`)
	require.NoError(t, err)
	call := n.(*Call)
	attr := call.Func.(*Attribute)
	assert.Equal(t, "compile", attr.Attr)
	assert.Equal(t, "re", attr.Value.(*Name).ID)
	require.Len(t, call.Args, 1)
	assert.Equal(t, `\d+`, call.Args[0].(*Str).S)
	require.Len(t, call.Keywords, 1)
	assert.Equal(t, "flags", call.Keywords[0].Arg)
	bin := call.Keywords[0].Value.(*BinOp)
	assert.Equal(t, "|", bin.Op)

	n, err = ParseExpr(ctx, `x.errno == 2`)
	require.NoError(t, err)
	cmp := n.(*Compare)
	assert.Equal(t, []string{"=="}, cmp.Ops)
	assert.Equal(t, int64(2), cmp.Comparators[0].(*Num).Int)

	n, err = ParseExpr(ctx, `a is not b not in c`)
	require.NoError(t, err)
	assert.Equal(t, []string{"is not", "not in"}, n.(*Compare).Ops)

	n, err = ParseExpr(ctx, `{"a": 1, **rest}`)
	require.NoError(t, err)
	d := n.(*Dict)
	require.Len(t, d.Keys, 2)
	assert.Nil(t, d.Keys[1])
	assert.Len(t, d.Children(), 3)

	n, err = ParseExpr(ctx, `mkstemp()[1]`)
	require.NoError(t, err)
	sub := n.(*Subscript)
	assert.IsType(t, &Call{}, sub.Value)
	assert.Equal(t, int64(1), sub.Slice.(*Num).Int)

	n, err = ParseExpr(ctx, `f(*args, **kwargs)`)
	require.NoError(t, err)
	call = n.(*Call)
	assert.IsType(t, &Starred{}, call.Args[0])
	assert.Empty(t, call.Keywords[0].Arg)
}

func TestParseLiterals(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		src  string
		want Node
	}{
		{"plain", `'a\tb'`, &Str{S: "a\tb"}},
		{"raw", `r'a\tb'`, &Str{S: `a\tb`}},
		{"bytes", `b'\x00\xff'`, &Bytes{S: []byte{0, 0xff}}},
		{"triple", `"""x"y"""`, &Str{S: `x"y`}},
		{"unicode", `'é\N{BULLET}'`, &Str{S: "é•"}},
		{"octal", `'\101'`, &Str{S: "A"}},
		{"lone surrogate", `'\ud800'`, &Str{S: "\ufffd"}},
		{"concat", `'a' "b"`, &Str{S: "ab"}},
		{"concat bytes", `b'a' b'b'`, &Bytes{S: []byte("ab")}},
		{"hex int", `0x1F`, &Num{Text: "0x1F", Int: 31, IsInt: true}},
		{"underscore int", `1_000`, &Num{Text: "1_000", Int: 1000, IsInt: true}},
		{"float", `1.5`, &Num{Text: "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpr(ctx, tt.src)
			require.NoError(t, err)
			switch want := tt.want.(type) {
			case *Str:
				assert.Equal(t, want.S, got.(*Str).S)
			case *Bytes:
				assert.Equal(t, want.S, got.(*Bytes).S)
			case *Num:
				num := got.(*Num)
				assert.Equal(t, want.Text, num.Text)
				assert.Equal(t, want.IsInt, num.IsInt)
				assert.Equal(t, want.Int, num.Int)
			}
		})
	}

	n, err := ParseExpr(ctx, `f"{x!r:>10} and {y}"`)
	require.NoError(t, err)
	assert.IsType(t, &JoinedStr{}, n)
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"broken", "x = 1\ndef f(:\n", 2, "invalid syntax"},
		{"print statement", "print 'hello'\n", 1, "Missing parentheses in call to 'print'. Did you mean print(...)?"},
		{"mixed literals", "x = b'a' 'b'\n", 1, "cannot mix bytes and nonbytes literals"},
		{"leading zeros", "x = 0777\n", 1, "leading zeros in decimal integer literals are not permitted; use an 0o prefix for octal integers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(context.Background(), "bad.py", []byte(tt.src))
			var syn *SyntaxError
			require.ErrorAs(t, err, &syn)
			assert.Equal(t, tt.line, syn.Line)
			assert.Equal(t, tt.msg, syn.Msg)
		})
	}
}

func TestParseWarnings(t *testing.T) {
	_, warnings := parse(t, `x = '\d'
assert (x, 'message')
if x is 'a':
    pass
if x is not 1:
    pass
if x is None:
    pass
`)
	assert.Equal(t, []Warning{
		{Line: 1, Msg: `invalid escape sequence '\d'`},
		{Line: 2, Msg: MsgAssertionAlwaysTrue},
		{Line: 3, Msg: `"is" with 'str' literal. Did you mean "=="?`},
		{Line: 5, Msg: `"is not" with 'int' literal. Did you mean "!="?`},
	}, warnings)
}

func TestUnwrap(t *testing.T) {
	n, err := ParseExpr(context.Background(), `'a' + b % c`)
	require.NoError(t, err)
	assert.IsType(t, &Str{}, Unwrap(n))

	n, err = ParseExpr(context.Background(), `x`)
	require.NoError(t, err)
	assert.Same(t, n, Unwrap(n))
}
