package sre

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"pydiatra/internal/pytext"
)

// numericEscape handles \x, \u, \U and \N, which behave the same inside
// and outside character classes. ok is false when esc is not one of them.
func (p *parser) numericEscape(esc string) (c code, ok bool, err error) {
	src := p.src
	switch esc[1:] {
	case "x":
		more, err := src.getWhile(2, hexDigits)
		if err != nil {
			return code{}, true, err
		}
		esc += more
		if len(esc) != 4 {
			return code{}, true, src.error("incomplete escape "+esc, len(esc))
		}
	case "u", "U":
		if !src.isText {
			return code{}, false, nil
		}
		n := 4
		if esc == `\U` {
			n = 8
		}
		more, err := src.getWhile(n, hexDigits)
		if err != nil {
			return code{}, true, err
		}
		esc += more
		if len(esc) != n+2 {
			return code{}, true, src.error("incomplete escape "+esc, len(esc))
		}
	case "N":
		if !src.isText {
			return code{}, false, nil
		}
		brace, err := src.match("{")
		if err != nil {
			return code{}, true, err
		}
		if !brace {
			return code{}, true, src.error("missing {", 0)
		}
		name, err := src.getUntil("}", "character name")
		if err != nil {
			return code{}, true, err
		}
		r, found := pytext.LookupName(name)
		if !found {
			return code{}, true, src.error("undefined character name "+pytext.Repr(name),
				utf8.RuneCountInString(name)+len(`\N{}`))
		}
		return code{Literal, int(r)}, true, nil
	default:
		return code{}, false, nil
	}
	v, _ := strconv.ParseUint(esc[2:], 16, 32)
	if v > utf8.MaxRune {
		return code{}, true, src.error("bad escape "+esc, len(esc))
	}
	return code{Literal, int(v)}, true, nil
}

// letterEscape handles a two-character escape that matched nothing else.
// Unknown ASCII letters are reported and then taken literally.
func (p *parser) letterEscape(esc string) (code, error) {
	r, _ := utf8.DecodeRuneInString(esc[1:])
	if isASCIILetter(r) {
		p.diags.warn("bad escape %s", esc)
	}
	return code{Literal, int(r)}, nil
}

func (p *parser) classEscape(esc string) (code, error) {
	if r, ok := escapes[esc]; ok {
		return code{Literal, int(r)}, nil
	}
	if c, ok := categories[esc]; ok && c.op == In {
		return c, nil
	}
	if c, ok, err := p.numericEscape(esc); ok || err != nil {
		return c, err
	}
	src := p.src
	ch := esc[1:]
	switch {
	case len(ch) == 1 && ch[0] >= '0' && ch[0] <= '7':
		more, err := src.getWhile(2, octDigits)
		if err != nil {
			return code{}, err
		}
		esc += more
		v, _ := strconv.ParseInt(esc[1:], 8, 32)
		if v > 0o377 {
			return code{}, src.error(fmt.Sprintf("octal escape value %s outside of range 0-0o377", esc), len(esc))
		}
		return code{Literal, int(v)}, nil
	case len(ch) == 1 && (ch[0] == '8' || ch[0] == '9'):
		return code{}, src.error("bad escape "+esc, len(esc))
	}
	return p.letterEscape(esc)
}

func (p *parser) escape(esc string) (code, error) {
	if c, ok := categories[esc]; ok {
		return c, nil
	}
	if r, ok := escapes[esc]; ok {
		return code{Literal, int(r)}, nil
	}
	if c, ok, err := p.numericEscape(esc); ok || err != nil {
		return c, err
	}
	src, st := p.src, p.st
	ch := esc[1:]
	if ch == "0" {
		more, err := src.getWhile(2, octDigits)
		if err != nil {
			return code{}, err
		}
		v, _ := strconv.ParseInt("0"+more, 8, 32)
		return code{Literal, int(v)}, nil
	}
	if len(ch) == 1 && ch[0] >= '1' && ch[0] <= '9' {
		// octal escape or decimal group reference
		if src.nextIn(digits) {
			d, err := src.get()
			if err != nil {
				return code{}, err
			}
			esc += d
			if isOct(esc[1]) && isOct(esc[2]) && src.nextIn(octDigits) {
				d, err := src.get()
				if err != nil {
					return code{}, err
				}
				esc += d
				v, _ := strconv.ParseInt(esc[1:], 8, 32)
				if v > 0o377 {
					return code{}, src.error(fmt.Sprintf("octal escape value %s outside of range 0-0o377", esc), len(esc))
				}
				return code{Literal, int(v)}, nil
			}
		}
		group, _ := strconv.Atoi(esc[1:])
		if group < st.groups() {
			if !st.checkGroup(group) {
				return code{}, src.error("cannot refer to an open group", len(esc))
			}
			if err := st.checkLookbehindGroup(group, src); err != nil {
				return code{}, err
			}
			return code{GroupRef, group}, nil
		}
		return code{}, src.error(fmt.Sprintf("invalid group reference %d", group), len(esc)-1)
	}
	return p.letterEscape(esc)
}

func isOct(b byte) bool { return b >= '0' && b <= '7' }
