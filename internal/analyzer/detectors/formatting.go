package detectors

import (
	"errors"

	"pydiatra/internal/pyast"
	"pydiatra/internal/pyformat"
)

// FormattingDetector validates format strings whose arguments have a
// shape known at analysis time.
type FormattingDetector struct{}

func NewFormattingDetector() *FormattingDetector {
	return &FormattingDetector{}
}

func (d *FormattingDetector) Name() string {
	return "String Formatting Detector"
}

// CheckPercent checks "literal" % operand.
func (d *FormattingDetector) CheckPercent(op *pyast.BinOp, emit Emit) {
	if op.Op != "%" {
		return
	}
	lhs, ok := op.Left.(*pyast.Str)
	if !ok {
		return
	}
	args, ok := percentOperand(op.Right)
	if !ok {
		return
	}
	err := pyformat.Percent(lhs.S, args)
	if err == nil {
		return
	}
	var keyErr *pyformat.KeyError
	if errors.As(err, &keyErr) {
		emit("string-formatting-error", "missing key", keyErr.Error())
		return
	}
	emit("string-formatting-error", err.Error())
}

// percentOperand models the right operand of %. Non-literal values stand
// in as the integer 0.
func percentOperand(node pyast.Node) (any, bool) {
	switch n := node.(type) {
	case *pyast.Tuple:
		args := make([]any, 0, len(n.Elts))
		for _, elt := range n.Elts {
			if _, ok := elt.(*pyast.Starred); ok {
				return nil, false
			}
			args = append(args, placeholder(elt))
		}
		return args, true
	case *pyast.Dict:
		args := make(map[string]any, len(n.Keys))
		for i, k := range n.Keys {
			key, ok := k.(*pyast.Str)
			if !ok {
				return nil, false
			}
			args[key.S] = placeholder(n.Values[i])
		}
		return args, true
	case *pyast.Str:
		return n.S, true
	case *pyast.Num:
		return 0, true
	}
	return nil, false
}

func placeholder(node pyast.Node) any {
	if s, ok := node.(*pyast.Str); ok {
		return s.S
	}
	return 0
}

// CheckBrace checks "literal".format(...).
func (d *FormattingDetector) CheckBrace(call *pyast.Call, emit Emit) {
	attr, ok := call.Func.(*pyast.Attribute)
	if !ok || attr.Attr != "format" {
		return
	}
	tmpl, ok := attr.Value.(*pyast.Str)
	if !ok {
		return
	}
	fields, err := pyformat.ParseBrace(tmpl.S)
	if err != nil {
		emit("string-formatting-error", err.Error())
		return
	}
	for _, f := range fields {
		if !f.HasField {
			continue
		}
		if err := pyformat.CheckConversion(f.Conversion); err != nil {
			emit("string-formatting-error", err.Error())
		}
	}
}
