package detectors

import (
	"cmp"
	"fmt"
	"slices"

	"pydiatra/internal/pytext"
	"pydiatra/internal/sre"
)

// patternWalker traverses a parsed pattern. It reports suspicious
// character classes and records which flags the pattern content gives a
// reason to be set.
type patternWalker struct {
	emit      Emit
	justified int
}

func newPatternWalker(isBytes bool, emit Emit) *patternWalker {
	w := &patternWalker{emit: emit}
	// the implicit type flag is never redundant
	if isBytes {
		w.justified = sre.FlagASCII
	} else {
		w.justified = sre.FlagUnicode
	}
	return w
}

type charRange struct {
	lo, hi int
}

func formatChar(c int) string {
	if c >= 0xd800 && c <= 0xdfff {
		return fmt.Sprintf(`\u%04x`, c)
	}
	s := pytext.ASCII(string(rune(c)))
	return s[1 : len(s)-1]
}

func (r charRange) String() string {
	lo, hi := formatChar(r.lo), formatChar(r.hi)
	if lo == hi {
		return lo
	}
	return lo + "-" + hi
}

func (w *patternWalker) visit(p *sre.SubPattern) error {
	for _, it := range p.Items {
		var err error
		switch it.Op {
		case sre.In:
			err = w.visitIn(it.Arg)
		case sre.At:
			err = w.visitAt(it.Arg)
		case sre.Any:
			err = w.visitAny(it.Arg)
		default:
			err = w.generic(it.Arg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *patternWalker) generic(arg any) error {
	switch a := arg.(type) {
	case []any:
		for _, x := range a {
			if err := w.generic(x); err != nil {
				return err
			}
		}
	case *sre.SubPattern:
		if a != nil {
			return w.visit(a)
		}
	case int, sre.Opcode, string, nil:
	default:
		return &sre.OperandError{Value: arg}
	}
	return nil
}

func (w *patternWalker) visitIn(arg any) error {
	entries, ok := arg.([]any)
	if !ok {
		return &sre.OperandError{Value: arg}
	}
	var ranges []charRange
	for _, e := range entries {
		pair, ok := e.([]any)
		if !ok || len(pair) != 2 {
			return &sre.OperandError{Value: e}
		}
		op, ok := pair[0].(sre.Opcode)
		if !ok {
			return &sre.OperandError{Value: pair[0]}
		}
		switch op {
		case sre.Range:
			r, err := rangeOperand(pair[1])
			if err != nil {
				return err
			}
			ranges = append(ranges, r)
		case sre.Literal:
			c, ok := pair[1].(int)
			if !ok {
				return &sre.OperandError{Value: pair[1]}
			}
			ranges = append(ranges, charRange{c, c})
		case sre.Category:
			cat, ok := pair[1].(sre.Opcode)
			if !ok {
				return &sre.OperandError{Value: pair[1]}
			}
			w.justifyCategory(cat)
		}
	}

	if len(ranges) >= 2 {
		slices.SortFunc(ranges, func(a, b charRange) int {
			return cmp.Or(cmp.Compare(a.lo, b.lo), cmp.Compare(a.hi, b.hi))
		})
		seenDuplicate, seenOverlap := false, false
		for i := 0; i+1 < len(ranges); i++ {
			r1, r2 := ranges[i], ranges[i+1]
			switch {
			case r1 == r2:
				if !seenDuplicate {
					w.emit("regexp-duplicate-range", r1.String())
				}
				seenDuplicate = true
			case r1.hi >= r2.lo:
				if !seenOverlap {
					w.emit("regexp-overlapping-ranges", r1.String(), r2.String())
				}
				seenOverlap = true
			}
		}
	}
	return w.generic(entries)
}

func rangeOperand(arg any) (charRange, error) {
	bounds, ok := arg.([]any)
	if !ok || len(bounds) != 2 {
		return charRange{}, &sre.OperandError{Value: arg}
	}
	lo, ok := bounds[0].(int)
	if !ok {
		return charRange{}, &sre.OperandError{Value: bounds[0]}
	}
	hi, ok := bounds[1].(int)
	if !ok {
		return charRange{}, &sre.OperandError{Value: bounds[1]}
	}
	return charRange{lo, hi}, nil
}

func (w *patternWalker) justifyCategory(cat sre.Opcode) {
	switch cat {
	case sre.CategoryWord, sre.CategoryNotWord, sre.CategorySpace, sre.CategoryNotSpace:
		w.justifyLocale(false)
	case sre.CategoryDigit, sre.CategoryNotDigit:
		// LOCALE does not change what \d matches
		w.justifyLocale(true)
	}
}

func (w *patternWalker) justifyLocale(exceptLocale bool) {
	for _, f := range localeFlags {
		if exceptLocale && f.value == sre.FlagLocale {
			continue
		}
		w.justified |= f.value
	}
}

func (w *patternWalker) visitAt(arg any) error {
	at, ok := arg.(sre.Opcode)
	if !ok {
		return &sre.OperandError{Value: arg}
	}
	switch at {
	case sre.AtBoundary, sre.AtNonBoundary:
		w.justifyLocale(false)
	case sre.AtBeginning, sre.AtEnd:
		w.justified |= sre.FlagMultiline
	}
	return nil
}

func (w *patternWalker) visitAny(arg any) error {
	if arg != nil {
		return &sre.OperandError{Value: arg}
	}
	w.justified |= sre.FlagDotAll
	return nil
}
