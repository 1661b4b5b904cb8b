package models

import (
	"errors"
	"fmt"
	"strings"
)

// PrivateMarker prefixes the kind of tags that only carry information
// between traversal steps and never reach the user.
const PrivateMarker = "*"

var (
	ErrEmptyPath = errors.New("tag path must not be empty")
	ErrEmptyKind = errors.New("tag kind must not be empty")
)

// Locator is anything that knows its source line, typically a syntax node.
type Locator interface {
	Lineno() int
}

// LocationError is returned by NewTag for a location that is neither a
// line number, nil nor a Locator.
type LocationError struct {
	Value any
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("location must be an int, nil or a node, not %T", e.Value)
}

// Tag is a single finding. Line is 0 when the finding has no location.
type Tag struct {
	Path string `json:"path" msgpack:"path"`
	Line int    `json:"line,omitempty" msgpack:"line"`
	Kind string `json:"kind" msgpack:"kind"`
	Args []any  `json:"args,omitempty" msgpack:"args"`
}

// NewTag builds a tag located by loc, which is a line number, nil or a
// Locator.
func NewTag(path string, loc any, kind string, args ...any) (Tag, error) {
	if path == "" {
		return Tag{}, ErrEmptyPath
	}
	if kind == "" {
		return Tag{}, ErrEmptyKind
	}
	var line int
	switch l := loc.(type) {
	case nil:
	case int:
		if l < 0 {
			return Tag{}, &LocationError{Value: loc}
		}
		line = l
	case Locator:
		line = l.Lineno()
	default:
		return Tag{}, &LocationError{Value: loc}
	}
	return Tag{Path: path, Line: line, Kind: kind, Args: args}, nil
}

// MustTag is like NewTag but panics on invalid input. It is meant for
// rules whose arguments are known to be valid.
func MustTag(path string, loc any, kind string, args ...any) Tag {
	t, err := NewTag(path, loc, kind, args...)
	if err != nil {
		panic(err)
	}
	return t
}

// Private reports whether the tag is an intermediate signal.
func (t Tag) Private() bool {
	return strings.HasPrefix(t.Kind, PrivateMarker)
}

// Message renders the kind followed by the arguments.
func (t Tag) Message() string {
	parts := make([]string, 0, len(t.Args)+1)
	parts = append(parts, t.Kind)
	for _, a := range t.Args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

func (t Tag) String() string {
	if t.Line == 0 {
		return fmt.Sprintf("%s: %s", t.Path, t.Message())
	}
	return fmt.Sprintf("%s:%d: %s", t.Path, t.Line, t.Message())
}

// FilterPublic drops private tags, keeping the order of the rest.
func FilterPublic(tags []Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if !t.Private() {
			out = append(out, t)
		}
	}
	return out
}
