package sre

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pydiatra/internal/pytext"
)

// tokenizer yields single characters and two-character escapes.
type tokenizer struct {
	pattern []rune
	isText  bool
	index   int
	next    string
	diags   *Diagnostics
}

// eof marks the end of input in tokenizer.next
const eof = ""

func newTokenizer(pattern []rune, isText bool, diags *Diagnostics) (*tokenizer, error) {
	t := &tokenizer{pattern: pattern, isText: isText, diags: diags}
	if err := t.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tokenizer) advance() error {
	index := t.index
	if index >= len(t.pattern) {
		t.next = eof
		return nil
	}
	ch := string(t.pattern[index])
	if ch == `\` {
		index++
		if index >= len(t.pattern) {
			return newError("bad escape (end of pattern)", t.pattern, len(t.pattern)-1)
		}
		ch += string(t.pattern[index])
	}
	t.index = index + 1
	t.next = ch
	return nil
}

func (t *tokenizer) match(ch string) (bool, error) {
	if t.next != eof && ch == t.next {
		return true, t.advance()
	}
	return false, nil
}

func (t *tokenizer) get() (string, error) {
	this := t.next
	return this, t.advance()
}

// nextIn reports whether the next token is a single character from set.
func (t *tokenizer) nextIn(set string) bool {
	return utf8.RuneCountInString(t.next) == 1 && strings.Contains(set, t.next)
}

func (t *tokenizer) getWhile(n int, set string) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if !t.nextIn(set) {
			break
		}
		sb.WriteString(t.next)
		if err := t.advance(); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func (t *tokenizer) getUntil(terminator, name string) (string, error) {
	var sb strings.Builder
	for {
		c := t.next
		if err := t.advance(); err != nil {
			return "", err
		}
		if c == eof {
			if sb.Len() == 0 {
				return "", t.error("missing "+name, 0)
			}
			return "", t.error(fmt.Sprintf("missing %s, unterminated name", terminator), utf8.RuneCountInString(sb.String()))
		}
		if c == terminator {
			if sb.Len() == 0 {
				return "", t.error("missing "+name, 1)
			}
			return sb.String(), nil
		}
		sb.WriteString(c)
	}
}

func (t *tokenizer) tell() int {
	return t.index - utf8.RuneCountInString(t.next)
}

func (t *tokenizer) seek(index int) error {
	t.index = index
	return t.advance()
}

func (t *tokenizer) error(msg string, offset int) *Error {
	if !t.isText {
		msg = backslashReplace(msg)
	}
	return newError(msg, t.pattern, t.tell()-offset)
}

func (t *tokenizer) checkGroupName(name string, offset int) error {
	if !pytext.IsIdentifier(name) {
		return t.error("bad character in group name "+pytext.Repr(name), utf8.RuneCountInString(name)+offset)
	}
	if !t.isText && !pytext.IsASCII(name) {
		t.diags.warn("bad character in group name %s at position %d",
			pytext.ASCII(name), t.tell()-utf8.RuneCountInString(name)-offset)
	}
	return nil
}
