// Package pytext renders and classifies text the way the Python runtime
// does: repr() and ascii() of strings and code points, identifier checks
// and Unicode character name lookup.
package pytext

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/runenames"
)

// Repr returns Python's repr() of a str value.
func Repr(s string) string { return quote(s, false) }

// ASCII returns Python's ascii() of a str value.
func ASCII(s string) string { return quote(s, true) }

// ReprBytes returns Python's repr() of a bytes value.
func ReprBytes(b []byte) string {
	q := byte('\'')
	if strings.IndexByte(string(b), '\'') >= 0 && strings.IndexByte(string(b), '"') < 0 {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteByte('b')
	sb.WriteByte(q)
	for _, c := range b {
		switch {
		case c == q || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

func quote(s string, asciiOnly bool) string {
	q := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var sb strings.Builder
	sb.WriteRune(q)
	for _, r := range s {
		if r == q || r == '\\' {
			sb.WriteByte('\\')
			sb.WriteRune(r)
			continue
		}
		sb.WriteString(escapeRune(r, asciiOnly))
	}
	sb.WriteRune(q)
	return sb.String()
}

// EscapeRune renders one code point as it appears inside ascii() output,
// without quotes. Quotes are not escaped; a backslash is doubled.
func EscapeRune(r rune) string {
	if r == '\\' {
		return `\\`
	}
	return escapeRune(r, true)
}

func escapeRune(r rune, asciiOnly bool) string {
	switch r {
	case '\t':
		return `\t`
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	}
	switch {
	case r < 0x20 || r == 0x7f:
		return fmt.Sprintf(`\x%02x`, r)
	case r < 0x7f:
		return string(r)
	case !asciiOnly && IsPrintable(r):
		return string(r)
	case r <= 0xff:
		return fmt.Sprintf(`\x%02x`, r)
	case r <= 0xffff:
		return fmt.Sprintf(`\u%04x`, r)
	}
	return fmt.Sprintf(`\U%08x`, r)
}

// IsPrintable approximates str.isprintable for a single code point.
func IsPrintable(r rune) bool {
	if r == ' ' {
		return true
	}
	return utf8.ValidRune(r) && unicode.IsPrint(r)
}

// IsIdentifier reports whether s is a valid Python identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.Is(unicode.Nl, r):
		case i > 0 && (unicode.IsDigit(r) || unicode.In(r, unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc)):
		default:
			return false
		}
	}
	return true
}

// IsASCII reports whether every byte of s is below 0x80.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

var (
	namesOnce sync.Once
	names     map[string]rune
)

// LookupName maps a Unicode character name to its code point, ignoring
// case. The reverse table is built on first use.
func LookupName(name string) (rune, bool) {
	namesOnce.Do(buildNames)
	r, ok := names[strings.ToUpper(name)]
	return r, ok
}

func buildNames() {
	names = make(map[string]rune, 1<<15)
	for r := rune(0); r <= unicode.MaxRune; r++ {
		if r >= 0xd800 && r <= 0xdfff {
			continue
		}
		name := runenames.Name(r)
		if name == "" || strings.HasPrefix(name, "<") {
			continue
		}
		if _, dup := names[name]; !dup {
			names[name] = r
		}
	}
}
