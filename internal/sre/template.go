package sre

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"pydiatra/internal/pytext"
)

// ParseTemplate validates repl as a replacement template for p.
func ParseTemplate(repl string, isBytes bool, p *Pattern, diags *Diagnostics) error {
	s, err := newTokenizer(decode(repl, isBytes), !isBytes, diags)
	if err != nil {
		return err
	}
	addGroup := func(index, offset int) error {
		if index > p.Groups {
			return s.error(fmt.Sprintf("invalid group reference %d", index), offset)
		}
		return nil
	}
	for {
		this, err := s.get()
		if err != nil {
			return err
		}
		if this == eof {
			return nil
		}
		if this[0] != '\\' {
			continue
		}
		c := this[1:]
		switch {
		case c == "g":
			ok, err := s.match("<")
			if err != nil {
				return err
			}
			if !ok {
				return s.error("missing <", 0)
			}
			name, err := s.getUntil(">", "group name")
			if err != nil {
				return err
			}
			offset := utf8.RuneCountInString(name) + 1
			var index int
			if pytext.IsIdentifier(name) {
				gid, ok := p.GroupIndex[name]
				if !ok {
					return plainError("unknown group name " + pytext.Repr(name))
				}
				index = gid
			} else {
				n, err := strconv.Atoi(strings.TrimSpace(name))
				if err != nil || n < 0 {
					return s.error("bad character in group name "+pytext.Repr(name), offset)
				}
				if n >= maxGroups {
					return s.error(fmt.Sprintf("invalid group reference %d", n), offset)
				}
				index = n
			}
			if err := addGroup(index, offset); err != nil {
				return err
			}

		case c == "0":
			for i := 0; i < 2 && s.nextIn(octDigits); i++ {
				if _, err := s.get(); err != nil {
					return err
				}
			}

		case len(c) == 1 && c[0] >= '1' && c[0] <= '9':
			if s.nextIn(digits) {
				d, err := s.get()
				if err != nil {
					return err
				}
				this += d
				if isOct(this[1]) && isOct(this[2]) && s.nextIn(octDigits) {
					d, err := s.get()
					if err != nil {
						return err
					}
					this += d
					v, _ := strconv.ParseInt(this[1:], 8, 32)
					if v > 0o377 {
						return s.error(fmt.Sprintf("octal escape value %s outside of range 0-0o377", this), len(this))
					}
					continue
				}
			}
			group, _ := strconv.Atoi(this[1:])
			if err := addGroup(group, len(this)-1); err != nil {
				return err
			}

		default:
			if _, ok := escapes[this]; ok {
				continue
			}
			r, _ := utf8.DecodeRuneInString(c)
			if isASCIILetter(r) {
				diags.warn("bad escape %s", this)
			}
		}
	}
}
