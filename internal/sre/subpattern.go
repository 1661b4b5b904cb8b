package sre

import (
	"fmt"

	"pydiatra/internal/pytext"
)

// Item is one (operation, operand) pair. Operands are ints (code points,
// counts, group numbers), Opcodes, nil, []any sequences of operands or
// *SubPattern values:
//
//	Literal, NotLiteral, GroupRef   int
//	Any                             nil
//	At                              Opcode (AtBeginning, AtBoundary, ...)
//	In                              []any of []any{Opcode, operand} entries
//	Subpattern                      []any{group (nil or int), addFlags, delFlags, *SubPattern}
//	MinRepeat, MaxRepeat, ...       []any{min, max, *SubPattern}
//	Branch                          []any{nil, []any{*SubPattern, ...}}
//	Assert, AssertNot               []any{direction, *SubPattern}
//	GroupRefExists                  []any{group, *SubPattern, *SubPattern or nil}
//	AtomicGroup                     *SubPattern
//
// Inside an In operand a Range entry carries []any{lo, hi}.
type Item struct {
	Op  Opcode
	Arg any
}

// SubPattern is a parsed sequence of items.
type SubPattern struct {
	Items []Item
	state *state
	width *[2]int
}

func newSubPattern(st *state) *SubPattern {
	return &SubPattern{state: st}
}

func (p *SubPattern) append(it Item) {
	p.Items = append(p.Items, it)
	p.width = nil
}

// Width returns the minimum and maximum number of characters the pattern
// can match. The maximum is capped at MaxRepeatCount.
func (p *SubPattern) Width() (int, int) {
	if p.width != nil {
		return p.width[0], p.width[1]
	}
	lo, hi := 0, 0
loop:
	for _, it := range p.Items {
		switch {
		case it.Op == Branch:
			i, j := MaxRepeatCount-1, 0
			for _, alt := range it.Arg.([]any)[1].([]any) {
				l, h := alt.(*SubPattern).Width()
				i = min(i, l)
				j = max(j, h)
			}
			lo += i
			hi += j
		case it.Op == AtomicGroup:
			i, j := it.Arg.(*SubPattern).Width()
			lo += i
			hi += j
		case it.Op == Subpattern:
			args := it.Arg.([]any)
			i, j := args[3].(*SubPattern).Width()
			lo += i
			hi += j
		case it.Op.isRepeat():
			args := it.Arg.([]any)
			lower, upper := args[0].(int), args[1].(int)
			i, j := args[2].(*SubPattern).Width()
			lo = satAdd(lo, satMul(i, lower))
			if upper == MaxRepeatCount && j != 0 {
				hi = MaxRepeatCount
			} else {
				hi = satAdd(hi, satMul(j, upper))
			}
		case it.Op.isUnit():
			lo++
			hi++
		case it.Op == GroupRef:
			w := p.state.groupWidths[it.Arg.(int)]
			if w != nil {
				lo += w[0]
				hi += w[1]
			}
		case it.Op == GroupRefExists:
			args := it.Arg.([]any)
			i, j := args[1].(*SubPattern).Width()
			if no, ok := args[2].(*SubPattern); ok {
				l, h := no.Width()
				i = min(i, l)
				j = max(j, h)
			} else {
				i = 0
			}
			lo += i
			hi += j
		case it.Op == Success:
			break loop
		}
		lo = min(lo, MaxRepeatCount)
		hi = min(hi, MaxRepeatCount)
	}
	p.width = &[2]int{min(lo, MaxRepeatCount-1), min(hi, MaxRepeatCount)}
	return p.width[0], p.width[1]
}

func satMul(a, b int) int {
	if a != 0 && b > MaxRepeatCount/a {
		return MaxRepeatCount
	}
	return a * b
}

func satAdd(a, b int) int {
	return min(a+b, MaxRepeatCount)
}

// itemEqual compares items the way tuples compare in the reference
// parser: nested subpatterns are equal only when identical.
func itemEqual(a, b Item) bool {
	return a.Op == b.Op && operandEqual(a.Arg, b.Arg)
}

func operandEqual(a, b any) bool {
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !operandEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case *SubPattern:
		y, ok := b.(*SubPattern)
		return ok && x == y
	case int, Opcode, string, nil:
		return a == b
	}
	return false
}

type state struct {
	flags       int
	groupDict   map[string]int
	groupWidths []*[2]int
	lookbehind  int // -1 when not inside a lookbehind
	groupRefPos map[int]int
}

func newState(flags int) *state {
	return &state{
		flags:       flags,
		groupDict:   make(map[string]int),
		groupWidths: []*[2]int{nil},
		lookbehind:  -1,
		groupRefPos: make(map[int]int),
	}
}

func (s *state) groups() int { return len(s.groupWidths) }

func (s *state) openGroup(name string, named bool) (int, error) {
	gid := s.groups()
	s.groupWidths = append(s.groupWidths, nil)
	if s.groups() > maxGroups {
		return 0, plainError("too many groups")
	}
	if named {
		if ogid, ok := s.groupDict[name]; ok {
			return 0, plainError(fmt.Sprintf("redefinition of group name %s as group %d; was group %d",
				pytext.Repr(name), gid, ogid))
		}
		s.groupDict[name] = gid
	}
	return gid, nil
}

func (s *state) closeGroup(gid int, p *SubPattern) {
	lo, hi := p.Width()
	s.groupWidths[gid] = &[2]int{lo, hi}
}

func (s *state) checkGroup(gid int) bool {
	return gid < s.groups() && s.groupWidths[gid] != nil
}

func (s *state) checkLookbehindGroup(gid int, src *tokenizer) error {
	if s.lookbehind < 0 {
		return nil
	}
	if !s.checkGroup(gid) {
		return src.error("cannot refer to an open group", 0)
	}
	if gid >= s.lookbehind {
		return src.error("cannot refer to group defined in the same lookbehind subpattern", 0)
	}
	return nil
}
