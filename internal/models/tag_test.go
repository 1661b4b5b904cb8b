package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line int

func (l line) Lineno() int { return int(l) }

func TestNewTag(t *testing.T) {
	tests := []struct {
		name string
		loc  any
		kind string
		args []any
		want string
	}{
		{"line", 3, "string-exception", nil, "a.py:3: string-exception"},
		{"no location", nil, "embedded-code-copy", []any{"jquery"}, "a.py: embedded-code-copy jquery"},
		{"locator", line(7), "hardcoded-errno-value", []any{2, "->", "errno.ENOENT"}, "a.py:7: hardcoded-errno-value 2 -> errno.ENOENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := NewTag("a.py", tt.loc, tt.kind, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tag.String())
			assert.False(t, tag.Private())
		})
	}
}

func TestNewTagErrors(t *testing.T) {
	_, err := NewTag("", 1, "bare-except")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = NewTag("a.py", 1, "")
	assert.ErrorIs(t, err, ErrEmptyKind)

	_, err = NewTag("a.py", "line 1", "bare-except")
	var locErr *LocationError
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, "line 1", locErr.Value)

	assert.Panics(t, func() { MustTag("a.py", 1.5, "bare-except") })
}

func TestFilterPublic(t *testing.T) {
	tags := []Tag{
		MustTag("a.py", nil, "*reraise"),
		MustTag("a.py", 2, "bare-except"),
		MustTag("a.py", 3, "*hardcoded-errno-value", 2),
		MustTag("a.py", 4, "string-exception"),
	}
	assert.True(t, tags[0].Private())
	public := FilterPublic(tags)
	require.Len(t, public, 2)
	assert.Equal(t, "bare-except", public[0].Kind)
	assert.Equal(t, "string-exception", public[1].Kind)
}

func TestAnalysisResult(t *testing.T) {
	res := NewAnalysisResult()
	res.CalculateScore()
	assert.Equal(t, 100, res.QualityScore)

	res.AddFinding(Finding{Tag: MustTag("a.py", nil, "*reraise"), Severity: SeverityCritical})
	res.AddFinding(Finding{Tag: MustTag("a.py", 1, "bare-except"), Severity: SeverityHigh, Certainty: "certain"})
	res.AddFinding(Finding{Tag: MustTag("a.py", 2, "regexp-redundant-flag", "re.M"), Severity: SeverityLow, Certainty: "wild-guess"})
	res.CalculateScore()

	assert.Equal(t, 2, res.TotalTags)
	assert.Equal(t, map[string]int{"HIGH": 1, "LOW": 1}, res.TagsBySeverity)
	assert.Equal(t, 89, res.QualityScore)
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, s)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}
