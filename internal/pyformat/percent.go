// Package pyformat validates Python format strings against statically
// known arguments: printf-style "%" formatting and str.format templates.
package pyformat

import (
	"fmt"

	"pydiatra/internal/pytext"
)

// Percent arguments are modelled by shape only. An argument value is a
// string (a str literal), an int (any other value) or, for the whole
// right operand, a []any tuple or a map[string]any dict.

// Error is a formatting failure, worded like the interpreter's message.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// KeyError reports a mapping key that the dict operand does not have.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string { return pytext.Repr(e.Key) }

func errorf(format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "str"
	case int:
		return "int"
	case map[string]any:
		return "dict"
	case []any:
		return "tuple"
	}
	return fmt.Sprintf("%T", v)
}

type percentState struct {
	fmt    []rune
	pos    int
	dict   map[string]any
	args   any
	tuple  []any
	argIdx int
	argLen int
}

func (s *percentState) nextArg() (any, error) {
	idx := s.argIdx
	if idx < s.argLen {
		s.argIdx++
		if s.argLen < 0 {
			return s.args, nil
		}
		return s.tuple[idx], nil
	}
	return nil, errorf("not enough arguments for format string")
}

// read returns the next format character; ok is false past the end.
func (s *percentState) read() (rune, bool) {
	if s.pos >= len(s.fmt) {
		return 0, false
	}
	ch := s.fmt[s.pos]
	s.pos++
	return ch, true
}

// Percent checks format % args.
func Percent(format string, args any) error {
	s := &percentState{fmt: []rune(format), args: args, argIdx: -2, argLen: -1}
	if d, ok := args.(map[string]any); ok {
		s.dict = d
	}
	if t, ok := args.([]any); ok {
		s.tuple = t
		s.argIdx, s.argLen = 0, len(t)
	}
	n := len(s.fmt)
	for s.pos < n {
		if s.fmt[s.pos] != '%' {
			s.pos++
			continue
		}
		s.pos++
		if s.pos < n && s.fmt[s.pos] == '%' {
			s.pos++
			continue
		}
		if err := s.spec(); err != nil {
			return err
		}
	}
	if s.argIdx < s.argLen && s.dict == nil {
		return errorf("not all arguments converted during string formatting")
	}
	return nil
}

func isFlag(ch rune) bool {
	switch ch {
	case '-', '+', ' ', '#', '0':
		return true
	}
	return false
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

// spec parses and checks one conversion specifier after "%".
func (s *percentState) spec() error {
	n := len(s.fmt)
	var ch rune
	if s.pos < n {
		ch = s.fmt[s.pos]
	}
	if ch == '(' {
		if s.dict == nil {
			return errorf("format requires a mapping")
		}
		s.pos++
		start := s.pos
		depth := 1
		for depth > 0 && s.pos < n {
			switch s.fmt[s.pos] {
			case ')':
				depth--
			case '(':
				depth++
			}
			s.pos++
		}
		if depth > 0 {
			return errorf("incomplete format key")
		}
		key := string(s.fmt[start : s.pos-1])
		v, ok := s.dict[key]
		if !ok {
			return &KeyError{Key: key}
		}
		s.args = v
		s.argIdx, s.argLen = -2, -1
	}

	more := true
	for {
		var c rune
		if c, more = s.read(); !more {
			break
		}
		ch = c
		if !isFlag(ch) {
			break
		}
	}

	starArg := func() error {
		v, err := s.nextArg()
		if err != nil {
			return err
		}
		if _, ok := v.(int); !ok {
			return errorf("* wants int")
		}
		return nil
	}

	if ch == '*' {
		if err := starArg(); err != nil {
			return err
		}
		if more {
			if c, ok := s.read(); ok {
				ch = c
			} else {
				more = false
			}
		}
	} else if isDigit(ch) && more {
		for {
			c, ok := s.read()
			if !ok {
				more = false
				break
			}
			ch = c
			if !isDigit(ch) {
				break
			}
		}
	}

	if ch == '.' && more {
		if c, ok := s.read(); ok {
			ch = c
		} else {
			more = false
		}
		if ch == '*' && more {
			if err := starArg(); err != nil {
				return err
			}
			if c, ok := s.read(); ok {
				ch = c
			} else {
				more = false
			}
		} else if isDigit(ch) && more {
			for {
				c, ok := s.read()
				if !ok {
					more = false
					break
				}
				ch = c
				if !isDigit(ch) {
					break
				}
			}
		}
	}

	if more && (ch == 'h' || ch == 'l' || ch == 'L') {
		if c, ok := s.read(); ok {
			ch = c
		} else {
			more = false
		}
	}
	if !more {
		return errorf("incomplete format")
	}

	v, err := s.nextArg()
	if err != nil {
		return err
	}
	switch ch {
	case 's', 'r', 'a':
	case 'i', 'd', 'u', 'o', 'x', 'X':
		if _, ok := v.(int); !ok {
			what := "a real number"
			if ch == 'o' || ch == 'x' || ch == 'X' {
				what = "an integer"
			}
			return errorf("%%%c format: %s is required, not %s", ch, what, typeName(v))
		}
	case 'e', 'E', 'f', 'F', 'g', 'G':
		if _, ok := v.(int); !ok {
			return errorf("must be real number, not %s", typeName(v))
		}
	case 'c':
		switch x := v.(type) {
		case int:
		case string:
			if len([]rune(x)) != 1 {
				return errorf("%%c requires int or char")
			}
		default:
			return errorf("%%c requires int or char")
		}
	default:
		shown := '?'
		if ch >= 31 && ch <= 126 {
			shown = ch
		}
		return errorf("unsupported format character '%c' (%#x) at index %d", shown, ch, s.pos-1)
	}
	if s.dict != nil && s.argIdx < s.argLen {
		return errorf("not all arguments converted during string formatting")
	}
	return nil
}
