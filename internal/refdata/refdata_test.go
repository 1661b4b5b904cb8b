package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydiatra/internal/models"
)

func TestDefault(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	assert.True(t, d.Exceptions["ValueError"])
	assert.False(t, d.Exceptions["ValueErr"])
	assert.True(t, d.PILModules["Image"])
	assert.Equal(t, "ENOENT", d.Errno[2])
	assert.Equal(t, "EEXIST", d.Errno[17])
	assert.NotEmpty(t, d.CodeCopies)

	info := d.Info("bare-except")
	assert.Equal(t, models.SeverityMedium, info.Severity)
	assert.Equal(t, "possible", info.Certainty)
	assert.Equal(t, models.SeverityLow, d.Info("no-such-tag").Severity)

	names := d.TagNames()
	assert.Contains(t, names, "regexp-redundant-flag")
	assert.IsNonDecreasing(t, names)

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, d, again)
}

func TestMatchCodeCopy(t *testing.T) {
	d, err := Default()
	require.NoError(t, err)

	name, ok := d.MatchCodeCopy("\"\"\"Utilities for writing code that runs on Python 2 and 3\"\"\"")
	require.True(t, ok)
	assert.Equal(t, "python-six", name)

	name, ok = d.MatchCodeCopy("/*! jQuery v3.6.0 | (c) OpenJS Foundation */")
	require.True(t, ok)
	assert.Equal(t, "jquery", name)

	_, ok = d.MatchCodeCopy("hello world")
	assert.False(t, ok)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PILModulesFile), []byte("# test\nFoo\n\nBar\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CodeCopiesFile),
		[]byte("first || (a)(b)c\nsecond || xyz\n"), 0o644))

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Foo": true, "Bar": true}, d.PILModules)
	assert.True(t, d.Exceptions["KeyError"], "missing files fall back to the built-in copy")

	name, ok := d.MatchCodeCopy("--xyz--")
	require.True(t, ok)
	assert.Equal(t, "second", name)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{ErrnoFile, "2\n"},
		{ErrnoFile, "two ENOENT\n"},
		{CodeCopiesFile, "nosep\n"},
		{CodeCopiesFile, "bad || (\n"},
		{TagsFile, "bare-except:\n  severity: urgent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0o644))
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}
