package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydiatra/internal/models"
	"pydiatra/internal/pyast"
	"pydiatra/internal/refdata"
)

func defaultData(t *testing.T) *refdata.Data {
	t.Helper()
	data, err := refdata.Default()
	require.NoError(t, err)
	return data
}

func checkSource(t *testing.T, src string) []string {
	t.Helper()
	tags, err := CheckSource(context.Background(), "t.py", []byte(src), defaultData(t))
	require.NoError(t, err)
	var out []string
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

func TestCheckSource(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "clean",
			src:  "import os\nprint(os.getcwd())\n",
		},
		{
			name: "syntax error",
			src:  "x = 1\ndef f(:\n",
			want: []string{"t.py:2: syntax-error invalid syntax"},
		},
		{
			name: "front-end warnings first",
			src:  "raise 'x'\nassert (x, 'm')\nif x is 'a':\n    pass\n",
			want: []string{
				"t.py:2: assertion-always-true",
				`t.py:3: syntax-warning "is" with 'str' literal. Did you mean "=="?`,
				"t.py:1: string-exception",
			},
		},
		{
			name: "bare except",
			src:  "try:\n    pass\nexcept:\n    pass\n",
			want: []string{"t.py:3: bare-except"},
		},
		{
			name: "bare except re-raising",
			src:  "try:\n    pass\nexcept:\n    cleanup()\n    raise\n",
		},
		{
			name: "raise in body does not excuse handler",
			src:  "try:\n    raise\nexcept:\n    pass\n",
			want: []string{"t.py:3: bare-except"},
		},
		{
			name: "typed except",
			src:  "try:\n    pass\nexcept ValueError:\n    pass\n",
		},
		{
			name: "string exception in handler",
			src:  "try:\n    pass\nexcept ('a', ValueError):\n    pass\n",
			want: []string{"t.py:3: string-exception"},
		},
		{
			name: "except shadows builtin",
			src:  "try:\n    pass\nexcept OSError as ValueError:\n    pass\n",
			want: []string{"t.py:3: except-shadows-builtin ValueError"},
		},
		{
			name: "hardcoded errno in handler",
			src:  "try:\n    pass\nexcept OSError as e:\n    if e.errno == 17:\n        pass\n",
			want: []string{"t.py:4: hardcoded-errno-value 17 -> errno.EEXIST"},
		},
		{
			name: "hardcoded errno swapped",
			src:  "try:\n    pass\nexcept OSError as e:\n    if 2 != e.errno:\n        pass\n",
			want: []string{"t.py:4: hardcoded-errno-value 2 -> errno.ENOENT"},
		},
		{
			name: "errno outside handler",
			src:  "if e.errno == 17:\n    pass\n",
		},
		{
			name: "unknown errno",
			src:  "try:\n    pass\nexcept OSError as e:\n    if e.errno == 100000:\n        pass\n",
		},
		{
			name: "obsolete pil import",
			src:  "import Image, os\n",
			want: []string{"t.py:1: obsolete-pil-import Image"},
		},
		{
			name: "obsolete pil from import",
			src:  "from ImageDraw import Draw\n",
			want: []string{"t.py:1: obsolete-pil-import ImageDraw"},
		},
		{
			name: "pil fallback",
			src:  "try:\n    from PIL import Image\nexcept ImportError:\n    import Image\n",
		},
		{
			name: "reverse pil fallback",
			src:  "try:\n    import Image\nexcept ImportError:\n    import PIL.Image\n",
		},
		{
			name: "pil fallback for another module",
			src:  "try:\n    from PIL import Image\nexcept ImportError:\n    import ImageDraw\n",
			want: []string{"t.py:4: obsolete-pil-import ImageDraw"},
		},
		{
			name: "sys.version comparison",
			src:  "if sys.version >= '2.6':\n    pass\n",
			want: []string{"t.py:1: sys.version-comparison -> sys.version_info >= (2, 6)"},
		},
		{
			name: "sys.version mirrored",
			src:  "if '2.6' < sys.version:\n    pass\n",
			want: []string{"t.py:1: sys.version-comparison -> sys.version_info > (2, 6)"},
		},
		{
			name: "sys.version slice equality",
			src:  "if sys.version[:3] == '2.7':\n    pass\n",
			want: []string{"t.py:1: sys.version-comparison -> sys.version_info[:2] == (2, 7)"},
		},
		{
			name: "sys.version unparsable",
			src:  "if sys.version < '3.10':\n    pass\n",
			want: []string{"t.py:1: sys.version-comparison"},
		},
		{
			name: "sys.hexversion comparison",
			src:  "if sys.hexversion >= 0x02070000:\n    pass\n",
			want: []string{"t.py:1: sys.hexversion-comparison -> sys.version_info >= (2, 7)"},
		},
		{
			name: "sys.version against variable",
			src:  "if sys.version >= v:\n    pass\n",
		},
		{
			name: "mkstemp leak",
			src:  "path = tempfile.mkstemp()[1]\n",
			want: []string{"t.py:1: mkstemp-file-descriptor-leak"},
		},
		{
			name: "mkstemp unpacked",
			src:  "fd, path = mkstemp()\n",
		},
		{
			name: "regexp through alias",
			src:  "import re as regex\nregex.compile('[aa]')\n",
			want: []string{"t.py:2: regexp-duplicate-range a"},
		},
		{
			name: "regexp lone surrogate escape",
			src:  "re.compile('[\\ud800\\ud800]')\n",
			want: []string{`t.py:1: regexp-duplicate-range \ufffd`},
		},
		{
			name: "regexp nested in call",
			src:  "print(re.match('[aa]', s))\n",
			want: []string{"t.py:1: regexp-duplicate-range a"},
		},
		{
			name: "percent formatting",
			src:  "x = '%s' % ('a', 'b')\n",
			want: []string{"t.py:1: string-formatting-error not all arguments converted during string formatting"},
		},
		{
			name: "embedded code copy",
			src:  "doc = 'Utilities for writing code that runs on Python 2 and 3'\nother = 'jQuery v3.6.0'\n",
			want: []string{"t.py: embedded-code-copy python-six"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkSource(t, tt.src))
		})
	}
}

func TestCheckSourceEmptyPath(t *testing.T) {
	_, err := CheckSource(context.Background(), "", []byte("x = 1\n"), defaultData(t))
	assert.ErrorIs(t, err, models.ErrEmptyPath)
}

func TestAnalyzeKeepsPrivateTags(t *testing.T) {
	mod, _, err := pyast.Parse(context.Background(), "t.py", []byte("raise\nimport PIL.Image\n"))
	require.NoError(t, err)

	tags, err := Analyze("t.py", mod, defaultData(t))
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, kindReraise, tags[0].Kind)
	assert.Equal(t, 0, tags[0].Line)
	assert.Equal(t, kindModernPIL, tags[1].Kind)
	assert.Equal(t, []any{"Image"}, tags[1].Args)
	assert.Empty(t, models.FilterPublic(tags))

	_, err = Analyze("", mod, defaultData(t))
	assert.ErrorIs(t, err, models.ErrEmptyPath)
}

func TestVisitRestartsAndStopsEarly(t *testing.T) {
	mod, _, err := pyast.Parse(context.Background(), "t.py",
		[]byte("import re as r\nr.compile('[aa]')\nr.compile('[bb]')\n"))
	require.NoError(t, err)

	v := NewVisitor("t.py", defaultData(t))
	var first []models.Tag
	for tag := range v.Visit(mod) {
		first = append(first, tag)
		break
	}
	require.Len(t, first, 1)
	assert.Equal(t, "regexp-duplicate-range", first[0].Kind)

	collect := func() []models.Tag {
		var all []models.Tag
		for tag := range v.Visit(mod) {
			all = append(all, tag)
		}
		return all
	}
	once := collect()
	require.Len(t, once, 2)
	assert.Equal(t, first[0], once[0])
	assert.Equal(t, once, collect())
	assert.NoError(t, v.Err())
}

func TestAnalyzePatternCall(t *testing.T) {
	n, err := pyast.ParseExpr(context.Background(), `re.compile('[aa]', re.M)`)
	require.NoError(t, err)
	call, ok := n.(*pyast.Call)
	require.True(t, ok)

	tags, err := AnalyzePatternCall("t.py", call)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "t.py:1: regexp-duplicate-range a", tags[0].String())
	assert.Equal(t, "t.py:1: regexp-redundant-flag re.MULTILINE", tags[1].String())

	_, err = AnalyzePatternCall("", call)
	assert.ErrorIs(t, err, models.ErrEmptyPath)
}

func TestCheckSourceSample(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "sample.py"))
	require.NoError(t, err)

	tags, err := CheckSource(context.Background(), "sample.py", src, defaultData(t))
	require.NoError(t, err)
	var got []string
	for _, tag := range tags {
		got = append(got, tag.String())
	}
	assert.Equal(t, []string{
		"sample.py:13: obsolete-pil-import ImageDraw",
		"sample.py:19: bare-except",
		"sample.py:24: hardcoded-errno-value 17 -> errno.EEXIST",
		"sample.py:28: except-shadows-builtin ValueError",
		"sample.py:33: regexp-duplicate-range a",
		"sample.py:34: regexp-overlapping-ranges a-z b",
		"sample.py:35: regexp-redundant-flag re.DOTALL",
		"sample.py:36: regexp-misplaced-flags-argument count regex.IGNORECASE",
		"sample.py:40: string-formatting-error not enough arguments for format string",
		"sample.py:41: string-formatting-error unknown conversion specifier z",
		"sample.py:45: sys.version-comparison -> sys.version_info >= (2, 6)",
		"sample.py:47: sys.hexversion-comparison -> sys.version_info < (3,)",
		"sample.py:52: mkstemp-file-descriptor-leak",
	}, got)
}
