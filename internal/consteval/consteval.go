// Package consteval recovers compile-time values from the few expression
// shapes that regular-expression calls are usually written with.
package consteval

import (
	"errors"

	"pydiatra/internal/pyast"
	"pydiatra/internal/sre"
)

// ErrNotConstant is returned for any expression the evaluator does not
// understand. Callers skip the analysis that needed the value.
var ErrNotConstant = errors.New("not a constant expression")

// Result is the outcome of evaluating one expression. Value is a string,
// a []byte or an int when Err is nil.
type Result struct {
	Value any
	Err   error
}

// Int returns the value as an integer, if it is one.
func (r Result) Int() (int, bool) {
	if r.Err != nil {
		return 0, false
	}
	n, ok := r.Value.(int)
	return n, ok
}

// IsText reports whether the value is a str or bytes literal.
func (r Result) IsText() bool {
	if r.Err != nil {
		return false
	}
	switch r.Value.(type) {
	case string, []byte:
		return true
	}
	return false
}

func fail() Result { return Result{Err: ErrNotConstant} }

// Eval evaluates node. reNames holds the local names bound to the re
// module.
func Eval(node pyast.Node, reNames map[string]bool) Result {
	switch n := node.(type) {
	case *pyast.Str:
		return Result{Value: n.S}
	case *pyast.Bytes:
		return Result{Value: n.S}
	case *pyast.Attribute:
		mod, ok := n.Value.(*pyast.Name)
		if !ok || !reNames[mod.ID] {
			return fail()
		}
		if v, ok := sre.ModuleConstants[n.Attr]; ok {
			return Result{Value: v}
		}
		return fail()
	case *pyast.BinOp:
		if n.Op != "|" && n.Op != "+" {
			return fail()
		}
		x, ok := Eval(n.Left, reNames).Int()
		if !ok {
			return fail()
		}
		y, ok := Eval(n.Right, reNames).Int()
		if !ok {
			return fail()
		}
		if n.Op == "|" {
			return Result{Value: x | y}
		}
		return Result{Value: x + y}
	}
	return fail()
}
