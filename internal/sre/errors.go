package sre

import (
	"fmt"
	"strings"

	"pydiatra/internal/pytext"
)

// Error is a pattern compilation error. Pos is -1 when the error is not
// tied to a position in the pattern.
type Error struct {
	Msg     string
	Pattern []rune
	Pos     int
	Line    int
	Column  int
}

func newError(msg string, pattern []rune, pos int) *Error {
	e := &Error{Msg: msg, Pattern: pattern, Pos: pos}
	if pattern == nil || pos < 0 {
		return e
	}
	if pos > len(pattern) {
		pos = len(pattern)
	}
	e.Line = 1
	last := -1
	for i, r := range pattern[:pos] {
		if r == '\n' {
			e.Line++
			last = i
		}
	}
	e.Column = pos - last
	return e
}

// plainError is an error raised without pattern context.
func plainError(msg string) *Error {
	return &Error{Msg: msg, Pos: -1}
}

func (e *Error) Error() string {
	if e.Pattern == nil || e.Pos < 0 {
		return e.Msg
	}
	msg := fmt.Sprintf("%s at position %d", e.Msg, e.Pos)
	for _, r := range e.Pattern {
		if r == '\n' {
			return fmt.Sprintf("%s (line %d, column %d)", msg, e.Line, e.Column)
		}
	}
	return msg
}

// OperandError reports a value of unexpected type inside the structural
// representation. It signals a bug, not a problem with the analysed code.
type OperandError struct {
	Value any
}

func (e *OperandError) Error() string {
	return fmt.Sprintf("%#v has unexpected type %T", e.Value, e.Value)
}

// Diagnostics collects the warnings raised while compiling one pattern.
// A nil *Diagnostics discards them.
type Diagnostics struct {
	Warnings []string
}

func (d *Diagnostics) warn(format string, args ...any) {
	if d == nil {
		return
	}
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// backslashReplace escapes non-ASCII characters the way bytes patterns
// report them.
func backslashReplace(msg string) string {
	if pytext.IsASCII(msg) {
		return msg
	}
	var sb strings.Builder
	for _, r := range msg {
		switch {
		case r < 0x80:
			sb.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&sb, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			fmt.Fprintf(&sb, `\U%08x`, r)
		}
	}
	return sb.String()
}
