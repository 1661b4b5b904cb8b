package pyformat

import "fmt"

// Field is one chunk of a str.format template: literal text optionally
// followed by a replacement field.
type Field struct {
	Literal    string
	HasField   bool
	Name       string
	Spec       string
	Conversion rune // 0 when absent
}

// ParseBrace splits a str.format template the way string.Formatter.parse
// does. Nested fields inside format specs are not expanded.
func ParseBrace(format string) ([]Field, error) {
	s := []rune(format)
	var fields []Field
	pos := 0
	for pos < len(s) {
		start := pos
		var c rune
		markup := false
		for pos < len(s) {
			c = s[pos]
			pos++
			if c == '{' || c == '}' {
				markup = true
				break
			}
		}
		atEnd := pos >= len(s)
		n := pos - start
		if c == '}' && markup && (atEnd || s[pos] != c) {
			return nil, errorf("Single '}' encountered in format string")
		}
		if atEnd && c == '{' && markup {
			return nil, errorf("Single '{' encountered in format string")
		}
		if !atEnd && markup {
			if s[pos] == c {
				// escaped brace
				pos++
				markup = false
			} else {
				n--
			}
		}
		f := Field{Literal: string(s[start : start+n])}
		if markup {
			var err error
			if pos, err = parseField(s, pos, &f); err != nil {
				return nil, err
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(s []rune, pos int, f *Field) (int, error) {
	f.HasField = true
	nameStart := pos
	var c rune
loop:
	for pos < len(s) {
		c = s[pos]
		pos++
		switch c {
		case '{':
			return pos, errorf("unexpected '{' in field name")
		case '[':
			for pos < len(s) && s[pos] != ']' {
				pos++
			}
		case '}', ':', '!':
			break loop
		}
	}
	f.Name = string(s[nameStart : pos-1])
	if c != '!' && c != ':' {
		if c != '}' {
			return pos, errorf("expected '}' before end of string")
		}
		return pos, nil
	}
	if c == '!' {
		if pos >= len(s) {
			return pos, errorf("end of string while looking for conversion specifier")
		}
		f.Conversion = s[pos]
		pos++
		if pos < len(s) {
			c = s[pos]
			pos++
			if c == '}' {
				return pos, nil
			}
			if c != ':' {
				return pos, errorf("expected ':' after conversion specifier")
			}
		}
	}
	specStart := pos
	depth := 1
	for pos < len(s) {
		c = s[pos]
		pos++
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				f.Spec = string(s[specStart : pos-1])
				return pos, nil
			}
		}
	}
	return pos, errorf("unmatched '{' in format spec")
}

// CheckConversion validates a conversion character the way
// string.Formatter.convert_field does.
func CheckConversion(conv rune) error {
	switch conv {
	case 0, 's', 'r', 'a':
		return nil
	}
	return &Error{Msg: fmt.Sprintf("unknown conversion specifier %c", conv)}
}
