package sre

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"pydiatra/internal/pytext"
)

type parser struct {
	src   *tokenizer
	st    *state
	diags *Diagnostics
}

func ord(s string) int {
	r, _ := utf8.DecodeRuneInString(s)
	return int(r)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Parse parses pattern into its structural representation. For bytes
// patterns every byte of pattern is one character. The returned flags
// include inline flags and the implicit type flag.
func Parse(pattern string, isBytes bool, flags int, diags *Diagnostics) (*SubPattern, int, error) {
	runes := decode(pattern, isBytes)
	src, err := newTokenizer(runes, !isBytes, diags)
	if err != nil {
		return nil, 0, err
	}
	p := &parser{src: src, st: newState(flags), diags: diags}
	sub, err := p.parseSub(flags&FlagVerbose != 0, 0)
	if err != nil {
		return nil, 0, err
	}
	fixed, err := fixFlags(isBytes, p.st.flags)
	if err != nil {
		return nil, 0, err
	}
	p.st.flags = fixed
	if src.next != eof {
		return nil, 0, src.error("unbalanced parenthesis", 0)
	}
	for _, g := range sortedKeys(p.st.groupRefPos) {
		if g >= p.st.groups() {
			return nil, 0, newError(fmt.Sprintf("invalid group reference %d", g), runes, p.st.groupRefPos[g])
		}
	}
	return sub, fixed, nil
}

func decode(pattern string, isBytes bool) []rune {
	if !isBytes {
		return []rune(pattern)
	}
	runes := make([]rune, len(pattern))
	for i := 0; i < len(pattern); i++ {
		runes[i] = rune(pattern[i])
	}
	return runes
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func fixFlags(isBytes bool, flags int) (int, error) {
	if !isBytes {
		if flags&FlagLocale != 0 {
			return 0, plainError("cannot use LOCALE flag with a str pattern")
		}
		if flags&FlagASCII == 0 {
			flags |= FlagUnicode
		} else if flags&FlagUnicode != 0 {
			return 0, plainError("ASCII and UNICODE flags are incompatible")
		}
		return flags, nil
	}
	if flags&FlagUnicode != 0 {
		return 0, plainError("cannot use UNICODE flag with a bytes pattern")
	}
	if flags&FlagLocale != 0 && flags&FlagASCII != 0 {
		return 0, plainError("ASCII and LOCALE flags are incompatible")
	}
	return flags, nil
}

// parseSub parses an alternation: a|b|c
func (p *parser) parseSub(verbose bool, nested int) (*SubPattern, error) {
	var items []*SubPattern
	for {
		item, err := p.parse(verbose, nested+1, nested == 0 && len(items) == 0)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		ok, err := p.src.match("|")
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	if len(items) == 1 {
		return items[0], nil
	}

	sub := newSubPattern(p.st)
	// move a prefix shared by every alternative out of the branch
	for {
		var prefix *Item
		common := true
		for _, item := range items {
			if len(item.Items) == 0 {
				common = false
				break
			}
			if prefix == nil {
				prefix = &item.Items[0]
			} else if !itemEqual(item.Items[0], *prefix) {
				common = false
				break
			}
		}
		if !common {
			break
		}
		shared := *prefix
		for _, item := range items {
			item.Items = item.Items[1:]
			item.width = nil
		}
		sub.append(shared)
	}

	// alternatives of single characters become a character class
	var set []any
	asSet := true
	for _, item := range items {
		if len(item.Items) != 1 {
			asSet = false
			break
		}
		it := item.Items[0]
		switch {
		case it.Op == Literal:
			set = append(set, []any{Literal, it.Arg})
		case it.Op == In && !startsWithNegate(it.Arg.([]any)):
			set = append(set, it.Arg.([]any)...)
		default:
			asSet = false
		}
		if !asSet {
			break
		}
	}
	if asSet {
		sub.append(Item{Op: In, Arg: set})
		return sub, nil
	}
	alts := make([]any, len(items))
	for i, item := range items {
		alts[i] = item
	}
	sub.append(Item{Op: Branch, Arg: []any{nil, alts}})
	return sub, nil
}

func startsWithNegate(set []any) bool {
	if len(set) == 0 {
		return false
	}
	entry, ok := set[0].([]any)
	return ok && entry[0] == Negate
}

// parse parses a simple pattern.
func (p *parser) parse(verbose bool, nested int, first bool) (*SubPattern, error) {
	src := p.src
	sub := newSubPattern(p.st)
	for {
		this := src.next
		if this == eof || this == "|" || this == ")" {
			break
		}
		if err := src.advance(); err != nil {
			return nil, err
		}

		if verbose {
			if runeLen(this) == 1 && strings.Contains(whitespace, this) {
				continue
			}
			if this == "#" {
				for {
					c, err := src.get()
					if err != nil {
						return nil, err
					}
					if c == eof || c == "\n" {
						break
					}
				}
				continue
			}
		}

		switch {
		case this[0] == '\\':
			c, err := p.escape(this)
			if err != nil {
				return nil, err
			}
			sub.append(Item{Op: c.op, Arg: c.arg})

		case !strings.Contains(specialChars, this):
			sub.append(Item{Op: Literal, Arg: ord(this)})

		case this == "[":
			if err := p.parseClass(sub, nested); err != nil {
				return nil, err
			}

		case strings.Contains(repeatChars, this):
			if err := p.parseRepeat(sub, this); err != nil {
				return nil, err
			}

		case this == ".":
			sub.append(Item{Op: Any})

		case this == "(":
			v, err := p.parseGroup(sub, verbose, nested, first)
			if err != nil {
				return nil, err
			}
			verbose = v

		case this == "^":
			sub.append(Item{Op: At, Arg: AtBeginning})

		case this == "$":
			sub.append(Item{Op: At, Arg: AtEnd})
		}
	}

	// unpack non-capturing groups
	for i := len(sub.Items) - 1; i >= 0; i-- {
		it := sub.Items[i]
		if it.Op != Subpattern {
			continue
		}
		args := it.Arg.([]any)
		if args[0] == nil && args[1].(int) == 0 && args[2].(int) == 0 {
			inner := args[3].(*SubPattern).Items
			items := make([]Item, 0, len(sub.Items)-1+len(inner))
			items = append(items, sub.Items[:i]...)
			items = append(items, inner...)
			items = append(items, sub.Items[i+1:]...)
			sub.Items = items
			sub.width = nil
		}
	}
	return sub, nil
}

func (p *parser) parseClass(sub *SubPattern, nested int) error {
	src := p.src
	here := src.tell() - 1
	var set []any
	if src.next == "[" {
		p.diags.warn("Possible nested set at position %d", src.tell())
	}
	negate, err := src.match("^")
	if err != nil {
		return err
	}
	for {
		this, err := src.get()
		if err != nil {
			return err
		}
		if this == eof {
			return src.error("unterminated character set", src.tell()-here)
		}
		if this == "]" && len(set) > 0 {
			break
		}
		var code1 code
		if this[0] == '\\' {
			if code1, err = p.classEscape(this); err != nil {
				return err
			}
		} else {
			if len(set) > 0 && strings.Contains("-&~|", this) && src.next == this {
				p.diags.warn("Possible set %s at position %d", setOperation(this), src.tell()-1)
			}
			code1 = code{Literal, ord(this)}
		}
		isRange, err := src.match("-")
		if err != nil {
			return err
		}
		if !isRange {
			set = append(set, classEntry(code1))
			continue
		}
		that, err := src.get()
		if err != nil {
			return err
		}
		if that == eof {
			return src.error("unterminated character set", src.tell()-here)
		}
		if that == "]" {
			set = append(set, classEntry(code1), []any{Literal, int('-')})
			break
		}
		var code2 code
		if that[0] == '\\' {
			if code2, err = p.classEscape(that); err != nil {
				return err
			}
		} else {
			if that == "-" {
				p.diags.warn("Possible set difference at position %d", src.tell()-2)
			}
			code2 = code{Literal, ord(that)}
		}
		if code1.op != Literal || code2.op != Literal {
			return src.error(fmt.Sprintf("bad character range %s-%s", this, that), runeLen(this)+1+runeLen(that))
		}
		lo, hi := code1.arg.(int), code2.arg.(int)
		if hi < lo {
			return src.error(fmt.Sprintf("bad character range %s-%s", this, that), runeLen(this)+1+runeLen(that))
		}
		set = append(set, []any{Range, []any{lo, hi}})
	}

	// duplicates are kept so that they can be reported
	if len(set) == 1 && set[0].([]any)[0] == Literal {
		arg := set[0].([]any)[1]
		if negate {
			sub.append(Item{Op: NotLiteral, Arg: arg})
		} else {
			sub.append(Item{Op: Literal, Arg: arg})
		}
		return nil
	}
	if negate {
		set = append([]any{[]any{Negate, nil}}, set...)
	}
	sub.append(Item{Op: In, Arg: set})
	return nil
}

func setOperation(op string) string {
	switch op {
	case "-":
		return "difference"
	case "&":
		return "intersection"
	case "~":
		return "symmetric difference"
	}
	return "union"
}

// classEntry unwraps a category escape such as \d into its class entry.
func classEntry(c code) []any {
	if c.op == In {
		return c.arg.([]any)[0].([]any)
	}
	return []any{c.op, c.arg}
}

func (p *parser) parseRepeat(sub *SubPattern, this string) error {
	src := p.src
	here := src.tell()
	var lower, upper int
	switch this {
	case "?":
		lower, upper = 0, 1
	case "*":
		lower, upper = 0, MaxRepeatCount
	case "+":
		lower, upper = 1, MaxRepeatCount
	case "{":
		if src.next == "}" {
			sub.append(Item{Op: Literal, Arg: ord(this)})
			return nil
		}
		lower, upper = 0, MaxRepeatCount
		var lo, hi strings.Builder
		for src.nextIn(digits) {
			c, err := src.get()
			if err != nil {
				return err
			}
			lo.WriteString(c)
		}
		comma, err := src.match(",")
		if err != nil {
			return err
		}
		if comma {
			for src.nextIn(digits) {
				c, err := src.get()
				if err != nil {
					return err
				}
				hi.WriteString(c)
			}
		} else {
			hi.WriteString(lo.String())
		}
		closed, err := src.match("}")
		if err != nil {
			return err
		}
		if !closed {
			sub.append(Item{Op: Literal, Arg: ord(this)})
			return src.seek(here)
		}
		if lo.Len() > 0 {
			n, err := strconv.Atoi(lo.String())
			if err != nil || n >= MaxRepeatCount {
				return plainError("the repetition number is too large")
			}
			lower = n
		}
		if hi.Len() > 0 {
			n, err := strconv.Atoi(hi.String())
			if err != nil || n >= MaxRepeatCount {
				return plainError("the repetition number is too large")
			}
			upper = n
			if upper < lower {
				return src.error("min repeat greater than max repeat", src.tell()-here)
			}
		}
	}

	// figure out which item to repeat
	n := len(sub.Items)
	if n == 0 || sub.Items[n-1].Op == At {
		return src.error("nothing to repeat", src.tell()-here+runeLen(this))
	}
	last := sub.Items[n-1]
	if last.Op.isRepeat() {
		return src.error("multiple repeat", src.tell()-here+runeLen(this))
	}
	item := &SubPattern{state: p.st, Items: []Item{last}}
	if last.Op == Subpattern {
		args := last.Arg.([]any)
		if args[0] == nil && args[1].(int) == 0 && args[2].(int) == 0 {
			item = args[3].(*SubPattern)
		}
	}
	op := MaxRepeat
	lazy, err := src.match("?")
	if err != nil {
		return err
	}
	if lazy {
		op = MinRepeat
	} else {
		possessive, err := src.match("+")
		if err != nil {
			return err
		}
		if possessive {
			op = PossessiveRepeat
		}
	}
	sub.Items[n-1] = Item{Op: op, Arg: []any{lower, upper, item}}
	sub.width = nil
	return nil
}

// parseGroup handles everything after "(". It returns the verbose mode
// for the rest of the pattern, which global flags may switch on.
func (p *parser) parseGroup(sub *SubPattern, verbose bool, nested int, first bool) (bool, error) {
	src, st := p.src, p.st
	start := src.tell() - 1
	capture := true
	atomic := false
	var name string
	named := false
	addFlags, delFlags := 0, 0

	question, err := src.match("?")
	if err != nil {
		return verbose, err
	}
	if question {
		char, err := src.get()
		if err != nil {
			return verbose, err
		}
		if char == eof {
			return verbose, src.error("unexpected end of pattern", 0)
		}
		switch {
		case char == "P":
			if ok, err := src.match("<"); err != nil {
				return verbose, err
			} else if ok {
				if name, err = src.getUntil(">", "group name"); err != nil {
					return verbose, err
				}
				if err := src.checkGroupName(name, 1); err != nil {
					return verbose, err
				}
				named = true
				break
			}
			if ok, err := src.match("="); err != nil {
				return verbose, err
			} else if ok {
				name, err := src.getUntil(")", "group name")
				if err != nil {
					return verbose, err
				}
				if err := src.checkGroupName(name, 1); err != nil {
					return verbose, err
				}
				gid, ok := st.groupDict[name]
				if !ok {
					return verbose, src.error("unknown group name "+pytext.Repr(name), runeLen(name)+1)
				}
				if !st.checkGroup(gid) {
					return verbose, src.error("cannot refer to an open group", runeLen(name)+1)
				}
				if err := st.checkLookbehindGroup(gid, src); err != nil {
					return verbose, err
				}
				sub.append(Item{Op: GroupRef, Arg: gid})
				return verbose, nil
			}
			c, err := src.get()
			if err != nil {
				return verbose, err
			}
			if c == eof {
				return verbose, src.error("unexpected end of pattern", 0)
			}
			return verbose, src.error("unknown extension ?P"+c, runeLen(c)+2)

		case char == ":":
			capture = false

		case char == "#":
			for {
				if src.next == eof {
					return verbose, src.error("missing ), unterminated comment", src.tell()-start)
				}
				c, err := src.get()
				if err != nil {
					return verbose, err
				}
				if c == ")" {
					break
				}
			}
			return verbose, nil

		case char == "=" || char == "!" || char == "<":
			return verbose, p.parseAssert(sub, char, verbose, nested, start)

		case char == "(":
			return verbose, p.parseConditional(sub, verbose, nested, start)

		case char == ">":
			capture = false
			atomic = true

		case char == "-" || isInlineFlag(char):
			add, del, global, err := p.parseFlags(char)
			if err != nil {
				return verbose, err
			}
			if global {
				if !first || len(sub.Items) > 0 {
					return verbose, src.error("global flags not at the start of the expression", src.tell()-start)
				}
				return st.flags&FlagVerbose != 0, nil
			}
			addFlags, delFlags = add, del
			capture = false

		default:
			return verbose, src.error("unknown extension ?"+char, runeLen(char)+1)
		}
	}

	var group any
	if capture {
		gid, err := st.openGroup(name, named)
		if err != nil {
			e := err.(*Error)
			return verbose, src.error(e.Msg, runeLen(name)+1)
		}
		group = gid
	}
	subVerbose := (verbose || addFlags&FlagVerbose != 0) && delFlags&FlagVerbose == 0
	inner, err := p.parseSub(subVerbose, nested+1)
	if err != nil {
		return verbose, err
	}
	closed, err := src.match(")")
	if err != nil {
		return verbose, err
	}
	if !closed {
		return verbose, src.error("missing ), unterminated subpattern", src.tell()-start)
	}
	if gid, ok := group.(int); ok {
		st.closeGroup(gid, inner)
	}
	if atomic {
		sub.append(Item{Op: AtomicGroup, Arg: inner})
	} else {
		sub.append(Item{Op: Subpattern, Arg: []any{group, addFlags, delFlags, inner}})
	}
	return verbose, nil
}

func isInlineFlag(s string) bool {
	if runeLen(s) != 1 {
		return false
	}
	_, ok := inlineFlags[rune(s[0])]
	return ok
}

func (p *parser) parseAssert(sub *SubPattern, char string, verbose bool, nested, start int) error {
	src, st := p.src, p.st
	dir := 1
	outer := st.lookbehind
	if char == "<" {
		c, err := src.get()
		if err != nil {
			return err
		}
		if c == eof {
			return src.error("unexpected end of pattern", 0)
		}
		if c != "=" && c != "!" {
			return src.error("unknown extension ?<"+c, runeLen(c)+2)
		}
		char = c
		dir = -1
		if outer < 0 {
			st.lookbehind = st.groups()
		}
	}
	inner, err := p.parseSub(verbose, nested+1)
	if err != nil {
		return err
	}
	if dir < 0 && outer < 0 {
		st.lookbehind = -1
	}
	closed, err := src.match(")")
	if err != nil {
		return err
	}
	if !closed {
		return src.error("missing ), unterminated subpattern", src.tell()-start)
	}
	op := Assert
	if char == "!" {
		op = AssertNot
	}
	sub.append(Item{Op: op, Arg: []any{dir, inner}})
	return nil
}

func (p *parser) parseConditional(sub *SubPattern, verbose bool, nested, start int) error {
	src, st := p.src, p.st
	condName, err := src.getUntil(")", "group name")
	if err != nil {
		return err
	}
	var condGroup int
	if pytext.IsIdentifier(condName) {
		if err := src.checkGroupName(condName, 1); err != nil {
			return err
		}
		gid, ok := st.groupDict[condName]
		if !ok {
			return src.error("unknown group name "+pytext.Repr(condName), runeLen(condName)+1)
		}
		condGroup = gid
	} else {
		n, err := strconv.Atoi(strings.TrimSpace(condName))
		if err != nil || n < 0 {
			return src.error("bad character in group name "+pytext.Repr(condName), runeLen(condName)+1)
		}
		if n == 0 {
			return src.error("bad group number", runeLen(condName)+1)
		}
		if n >= maxGroups {
			return src.error(fmt.Sprintf("invalid group reference %d", n), runeLen(condName)+1)
		}
		if _, seen := st.groupRefPos[n]; !seen {
			st.groupRefPos[n] = src.tell() - runeLen(condName) - 1
		}
		condGroup = n
	}
	if err := st.checkLookbehindGroup(condGroup, src); err != nil {
		return err
	}
	yes, err := p.parse(verbose, nested+1, false)
	if err != nil {
		return err
	}
	var no any
	alt, err := src.match("|")
	if err != nil {
		return err
	}
	if alt {
		noSub, err := p.parse(verbose, nested+1, false)
		if err != nil {
			return err
		}
		if src.next == "|" {
			return src.error("conditional backref with more than two branches", 0)
		}
		no = noSub
	}
	closed, err := src.match(")")
	if err != nil {
		return err
	}
	if !closed {
		return src.error("missing ), unterminated subpattern", src.tell()-start)
	}
	sub.append(Item{Op: GroupRefExists, Arg: []any{condGroup, yes, no}})
	return nil
}

// parseFlags parses inline flags after "(?". global is true for "(?flags)".
func (p *parser) parseFlags(char string) (add, del int, global bool, err error) {
	src := p.src
	if char != "-" {
		for {
			flag := inlineFlags[rune(char[0])]
			if src.isText {
				if char == "L" {
					return 0, 0, false, src.error("bad inline flags: cannot use 'L' flag with a str pattern", 0)
				}
			} else if char == "u" {
				return 0, 0, false, src.error("bad inline flags: cannot use 'u' flag with a bytes pattern", 0)
			}
			add |= flag
			if flag&typeFlags != 0 && add&typeFlags != flag {
				return 0, 0, false, src.error("bad inline flags: flags 'a', 'u' and 'L' are incompatible", 0)
			}
			if char, err = src.get(); err != nil {
				return 0, 0, false, err
			}
			if char == eof {
				return 0, 0, false, src.error("missing -, : or )", 0)
			}
			if char == ")" || char == "-" || char == ":" {
				break
			}
			if !isInlineFlag(char) {
				msg := "missing -, : or )"
				if isAlpha(char) {
					msg = "unknown flag"
				}
				return 0, 0, false, src.error(msg, runeLen(char))
			}
		}
	}
	if char == ")" {
		p.st.flags |= add
		return 0, 0, true, nil
	}
	if add&globalFlags != 0 {
		return 0, 0, false, src.error("bad inline flags: cannot turn on global flag", 1)
	}
	if char == "-" {
		if char, err = src.get(); err != nil {
			return 0, 0, false, err
		}
		if char == eof {
			return 0, 0, false, src.error("missing flag", 0)
		}
		if !isInlineFlag(char) {
			msg := "missing flag"
			if isAlpha(char) {
				msg = "unknown flag"
			}
			return 0, 0, false, src.error(msg, runeLen(char))
		}
		for {
			flag := inlineFlags[rune(char[0])]
			if flag&typeFlags != 0 {
				return 0, 0, false, src.error("bad inline flags: cannot turn off flags 'a', 'u' and 'L'", 0)
			}
			del |= flag
			if char, err = src.get(); err != nil {
				return 0, 0, false, err
			}
			if char == eof {
				return 0, 0, false, src.error("missing :", 0)
			}
			if char == ":" {
				break
			}
			if !isInlineFlag(char) {
				msg := "missing :"
				if isAlpha(char) {
					msg = "unknown flag"
				}
				return 0, 0, false, src.error(msg, runeLen(char))
			}
		}
	}
	if del&globalFlags != 0 {
		return 0, 0, false, src.error("bad inline flags: cannot turn off global flag", 1)
	}
	if add&del != 0 {
		return 0, 0, false, src.error("bad inline flags: flag turned on and off", 1)
	}
	return add, del, false, nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
