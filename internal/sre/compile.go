package sre

import "fmt"

// Pattern is a successfully compiled regular expression.
type Pattern struct {
	Flags      int
	Groups     int
	GroupIndex map[string]int
	Root       *SubPattern
	IsBytes    bool
}

// Compile parses pattern and runs the checks the interpreter performs
// when turning the parse into code. Warnings go to diags.
func Compile(pattern string, isBytes bool, flags int, diags *Diagnostics) (*Pattern, error) {
	if flags&FlagTemplate != 0 {
		diags.warn("The re.TEMPLATE/re.T flag is deprecated as it is an undocumented flag " +
			"without an obvious purpose. Don't use it.")
	}
	root, flags, err := Parse(pattern, isBytes, flags, diags)
	if err != nil {
		return nil, err
	}
	if err := checkCode(root, flags); err != nil {
		return nil, err
	}
	return &Pattern{
		Flags:      flags,
		Groups:     root.state.groups() - 1,
		GroupIndex: root.state.groupDict,
		Root:       root,
		IsBytes:    isBytes,
	}, nil
}

func checkCode(p *SubPattern, flags int) error {
	for _, it := range p.Items {
		switch {
		case it.Op.isRepeat():
			if flags&FlagTemplate != 0 {
				return plainError(fmt.Sprintf("internal: unsupported template operator %s", it.Op.Name()))
			}
			if err := checkCode(it.Arg.([]any)[2].(*SubPattern), flags); err != nil {
				return err
			}
		case it.Op == Subpattern:
			args := it.Arg.([]any)
			inner := (flags | args[1].(int)) &^ args[2].(int)
			if err := checkCode(args[3].(*SubPattern), inner); err != nil {
				return err
			}
		case it.Op == AtomicGroup:
			if err := checkCode(it.Arg.(*SubPattern), flags); err != nil {
				return err
			}
		case it.Op == Assert || it.Op == AssertNot:
			args := it.Arg.([]any)
			inner := args[1].(*SubPattern)
			if args[0].(int) < 0 {
				lo, hi := inner.Width()
				if lo != hi {
					return plainError("look-behind requires fixed-width pattern")
				}
			}
			if err := checkCode(inner, flags); err != nil {
				return err
			}
		case it.Op == Branch:
			for _, alt := range it.Arg.([]any)[1].([]any) {
				if err := checkCode(alt.(*SubPattern), flags); err != nil {
					return err
				}
			}
		case it.Op == GroupRefExists:
			args := it.Arg.([]any)
			if err := checkCode(args[1].(*SubPattern), flags); err != nil {
				return err
			}
			if no, ok := args[2].(*SubPattern); ok {
				if err := checkCode(no, flags); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
