package pyast

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"pydiatra/internal/pytext"
)

// literal is a decoded string literal.
type literal struct {
	prefix   string
	text     string
	bytes    []byte
	warnings []string // e.g. invalid escape sequences
}

func (l *literal) isBytes() bool  { return strings.ContainsRune(l.prefix, 'b') }
func (l *literal) isFormat() bool { return strings.ContainsRune(l.prefix, 'f') }
func (l *literal) isRaw() bool    { return strings.ContainsRune(l.prefix, 'r') }

// decodeLiteral splits raw literal source text into prefix, quotes and body
// and decodes the body.
func decodeLiteral(raw string) (*literal, error) {
	i := strings.IndexAny(raw, `'"`)
	if i < 0 {
		return nil, fmt.Errorf("malformed string literal %q", raw)
	}
	lit := &literal{prefix: strings.ToLower(raw[:i])}
	q := raw[i : i+1]
	if strings.HasPrefix(raw[i:], q+q+q) && len(raw)-i >= 6 {
		q = q + q + q
	}
	if len(raw) < i+2*len(q) {
		return nil, fmt.Errorf("malformed string literal %q", raw)
	}
	body := raw[i+len(q) : len(raw)-len(q)]
	if lit.isFormat() {
		lit.text = body
		return lit, nil
	}
	if lit.isRaw() {
		if lit.isBytes() {
			lit.bytes = []byte(body)
		} else {
			lit.text = body
		}
		return lit, nil
	}
	if lit.isBytes() {
		for j := 0; j < len(body); j++ {
			if body[j] >= utf8.RuneSelf {
				return nil, fmt.Errorf("bytes can only contain ASCII literal characters")
			}
		}
		b, err := lit.unescape(body, true)
		if err != nil {
			return nil, err
		}
		lit.bytes = []byte(b)
		return lit, nil
	}
	s, err := lit.unescape(body, false)
	if err != nil {
		return nil, err
	}
	lit.text = s
	return lit, nil
}

// unescape decodes backslash escapes. In bytes mode every decoded value is
// a single byte; in text mode values are code points encoded as UTF-8.
func (l *literal) unescape(body string, bytesMode bool) (string, error) {
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var sb strings.Builder
	put := func(v rune) {
		if bytesMode {
			sb.WriteByte(byte(v))
		} else {
			sb.WriteRune(v)
		}
	}
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			if bytesMode {
				sb.WriteByte(c)
				i++
				continue
			}
			r, size := utf8.DecodeRuneInString(body[i:])
			sb.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			sb.WriteByte('\\')
			break
		}
		e := body[i+1]
		i += 2
		switch e {
		case '\n':
		case '\r':
			if i < len(body) && body[i] == '\n' {
				i++
			}
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(body) && j < i+2 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			digits := string(e) + body[i:j]
			i = j
			v, _ := strconv.ParseUint(digits, 8, 32)
			if v > 0o377 {
				l.warnings = append(l.warnings, fmt.Sprintf(`invalid octal escape sequence '\%s'`, digits))
				if bytesMode {
					v &= 0xff
				}
			}
			put(rune(v))
		case 'x':
			v, n, ok := hexDigits(body[i:], 2)
			if !ok {
				return "", truncatedEscape(bytesMode, `\xXX`, i-2, n)
			}
			i += n
			put(rune(v))
		case 'u', 'U':
			if bytesMode {
				l.invalidEscape(e)
				sb.WriteByte('\\')
				sb.WriteByte(e)
				continue
			}
			width := 4
			if e == 'U' {
				width = 8
			}
			v, n, ok := hexDigits(body[i:], width)
			if !ok {
				return "", truncatedEscape(false, `\`+string(e)+strings.Repeat("X", width), i-2, n)
			}
			i += n
			if v > utf8.MaxRune {
				return "", fmt.Errorf("(unicode error) 'unicodeescape' codec can't decode bytes in position %d-%d: illegal Unicode character", i-2-n, i-1)
			}
			// lone surrogates are not representable in UTF-8 and become U+FFFD
			sb.WriteRune(rune(v))
		case 'N':
			if bytesMode {
				l.invalidEscape(e)
				sb.WriteByte('\\')
				sb.WriteByte(e)
				continue
			}
			end := strings.IndexByte(body[i:], '}')
			if i >= len(body) || body[i] != '{' || end < 0 {
				return "", fmt.Errorf("(unicode error) 'unicodeescape' codec can't decode bytes in position %d-%d: malformed \\N character escape", i-2, i-1)
			}
			name := body[i+1 : i+end]
			r, ok := pytext.LookupName(name)
			if !ok {
				return "", fmt.Errorf("(unicode error) 'unicodeescape' codec can't decode bytes in position %d-%d: unknown Unicode character name", i-2, i+end)
			}
			i += end + 1
			sb.WriteRune(r)
		default:
			l.invalidEscape(e)
			sb.WriteByte('\\')
			if bytesMode {
				sb.WriteByte(e)
				continue
			}
			// multi-byte rune after the backslash
			r, size := utf8.DecodeRuneInString(body[i-1:])
			sb.WriteRune(r)
			i += size - 1
		}
	}
	return sb.String(), nil
}

func (l *literal) invalidEscape(e byte) {
	l.warnings = append(l.warnings, fmt.Sprintf(`invalid escape sequence '\%c'`, e))
}

func hexDigits(s string, width int) (uint64, int, bool) {
	n := 0
	for n < width && n < len(s) && isHex(s[n]) {
		n++
	}
	if n < width {
		return 0, n, false
	}
	v, err := strconv.ParseUint(s[:width], 16, 64)
	return v, width, err == nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func truncatedEscape(bytesMode bool, what string, at, n int) error {
	if bytesMode {
		return fmt.Errorf("(value error) invalid \\x escape at position %d", at)
	}
	return fmt.Errorf("(unicode error) 'unicodeescape' codec can't decode bytes in position %d-%d: truncated %s escape", at, at+n+1, what)
}
