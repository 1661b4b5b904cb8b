// Package sysversion converts sys.version and sys.hexversion values into
// the equivalent sys.version_info tuples.
package sysversion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrInvalidVersion is returned for values that do not denote a version.
	ErrInvalidVersion = errors.New("invalid version")

	versionRE = regexp.MustCompile(`\A\d+(?:[.]\d){0,2}\z`)
)

var releaseLevels = map[int]string{
	0xA: "alpha",
	0xB: "beta",
	0xC: "candidate",
	0xF: "final",
}

// Tuple is a sys.version_info prefix. Elements are ints, except for the
// release level, which is a string.
type Tuple []any

// String renders the tuple as Python would repr it.
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		if s, ok := v.(string); ok {
			parts[i] = "'" + s + "'"
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// HexversionToTuple converts a sys.hexversion number. Trailing zero
// components are dropped.
func HexversionToTuple(n int64) (Tuple, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, n)
	}
	major, n := n/0x1000000, n%0x1000000
	t := Tuple{int(major)}
	if n == 0 {
		return t, nil
	}
	minor, n := n/0x10000, n%0x10000
	t = append(t, int(minor))
	if n == 0 {
		return t, nil
	}
	micro, n := n/0x100, n%0x100
	t = append(t, int(micro))
	if n == 0 {
		return t, nil
	}
	level, ok := releaseLevels[int(n/0x10)]
	if !ok {
		return nil, fmt.Errorf("%w: release level %#x", ErrInvalidVersion, n/0x10)
	}
	return append(t, level, int(n%0x10)), nil
}

// VersionToTuple converts a sys.version prefix such as "2.7" or "3".
func VersionToTuple(s string) (Tuple, error) {
	if !versionRE.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersion, err)
	}
	all := Tuple{int(v.Major()), int(v.Minor()), int(v.Patch())}
	return all[:strings.Count(s, ".")+1], nil
}
