package detectors

import (
	"strings"

	"pydiatra/internal/consteval"
	actx "pydiatra/internal/context"
	"pydiatra/internal/pyast"
	"pydiatra/internal/sre"
)

type namedFlag struct {
	name  string
	value int
}

var (
	flagASCII     = namedFlag{"ASCII", sre.FlagASCII}
	flagDotAll    = namedFlag{"DOTALL", sre.FlagDotAll}
	flagLocale    = namedFlag{"LOCALE", sre.FlagLocale}
	flagMultiline = namedFlag{"MULTILINE", sre.FlagMultiline}
	flagUnicode   = namedFlag{"UNICODE", sre.FlagUnicode}
)

// Flags that select the character semantics. At most one may be in effect.
var localeFlags = []namedFlag{flagASCII, flagLocale, flagUnicode}

// pairs are ordered by flag name
var incompatibleFlagPairs = [][2]namedFlag{
	{flagASCII, flagLocale},
	{flagASCII, flagUnicode},
	{flagLocale, flagUnicode},
}

// Flags that only matter when the pattern contains something they affect.
var redundantFlags = []namedFlag{flagASCII, flagDotAll, flagLocale, flagMultiline, flagUnicode}

// reFunctions maps each re function to its positional parameters.
var reFunctions = map[string][]string{
	"compile":   {"pattern", "flags"},
	"search":    {"pattern", "string", "flags"},
	"match":     {"pattern", "string", "flags"},
	"fullmatch": {"pattern", "string", "flags"},
	"split":     {"pattern", "string", "maxsplit", "flags"},
	"findall":   {"pattern", "string", "flags"},
	"finditer":  {"pattern", "string", "flags"},
	"sub":       {"pattern", "repl", "string", "count", "flags"},
	"subn":      {"pattern", "repl", "string", "count", "flags"},
	"template":  {"pattern", "flags"},
}

// Integer parameters that precede flags and so catch flags passed
// positionally.
var countParams = map[string]bool{"count": true, "maxsplit": true}

// RegexpDetector checks calls to the functions of the re module whose
// pattern is a literal.
type RegexpDetector struct{}

func NewRegexpDetector() *RegexpDetector {
	return &RegexpDetector{}
}

func (d *RegexpDetector) Name() string {
	return "Regular Expression Detector"
}

// Check analyses call if it is a call of a re function. The only error
// it returns is a *sre.OperandError for a malformed parse result.
func (d *RegexpDetector) Check(ac *actx.AnalysisContext, call *pyast.Call, emit Emit) error {
	attr, ok := call.Func.(*pyast.Attribute)
	if !ok {
		return nil
	}
	mod, ok := attr.Value.(*pyast.Name)
	if !ok || !ac.ReNames[mod.ID] {
		return nil
	}
	params, ok := reFunctions[attr.Attr]
	if !ok {
		return nil
	}

	args := make(map[string]consteval.Result, len(params))
	var misplaced []int
	for i, node := range call.Args {
		if i >= len(params) {
			break
		}
		if _, ok := node.(*pyast.Starred); ok {
			return nil
		}
		args[params[i]] = consteval.Eval(node, ac.ReNames)
		if countParams[params[i]] && isFlagExpr(node, ac.ReNames) {
			misplaced = append(misplaced, i)
		}
	}
	for _, kw := range call.Keywords {
		if kw.Arg == "" {
			return nil
		}
		args[kw.Arg] = consteval.Eval(kw.Value, ac.ReNames)
	}
	for _, i := range misplaced {
		emit("regexp-misplaced-flags-argument", params[i], exprString(call.Args[i]))
	}

	pattern := args["pattern"]
	if !pattern.IsText() {
		return nil
	}
	flags := 0
	if r, ok := args["flags"]; ok {
		n, ok := r.Int()
		if !ok {
			return nil
		}
		flags = n
	}
	for _, pair := range incompatibleFlagPairs {
		if flags&pair[0].value != 0 && flags&pair[1].value != 0 {
			emit("regexp-incompatible-flags", "re."+pair[0].name, "re."+pair[1].name)
			return nil
		}
	}
	_, isBytes := pattern.Value.([]byte)
	if !isBytes && flags&sre.FlagLocale != 0 {
		emit("regexp-incompatible-flags", "str", "re.LOCALE")
		return nil
	}
	if attr.Attr == "template" {
		flags |= sre.FlagTemplate
	}
	flags &^= sre.FlagDebug

	diags := &sre.Diagnostics{}
	p, err := sre.Compile(textOf(pattern.Value), isBytes, flags, diags)
	if err == nil && strings.HasPrefix(attr.Attr, "sub") {
		if repl, ok := args["repl"]; ok && repl.IsText() {
			if _, replBytes := repl.Value.([]byte); replBytes == isBytes {
				err = sre.ParseTemplate(textOf(repl.Value), isBytes, p, diags)
			}
		}
	}
	if err != nil {
		emit("regexp-syntax-error", err.Error())
		return nil
	}
	for _, w := range diags.Warnings {
		if esc, ok := strings.CutPrefix(w, "bad escape "); ok {
			emit("regexp-bad-escape", esc)
		} else {
			emit("regexp-syntax-warning", w)
		}
	}

	walker := newPatternWalker(isBytes, emit)
	if err := walker.visit(p.Root); err != nil {
		return err
	}
	for _, f := range redundantFlags {
		if p.Flags&f.value != 0 && walker.justified&f.value == 0 {
			emit("regexp-redundant-flag", "re."+f.name)
		}
	}
	return nil
}

func textOf(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	s, _ := v.(string)
	return s
}

// isFlagExpr reports whether node spells out re flags, as opposed to a
// plain number.
func isFlagExpr(node pyast.Node, reNames map[string]bool) bool {
	switch node.(type) {
	case *pyast.Attribute, *pyast.BinOp:
		_, ok := consteval.Eval(node, reNames).Int()
		return ok
	}
	return false
}

// exprString renders the flag expressions isFlagExpr accepts.
func exprString(node pyast.Node) string {
	switch n := node.(type) {
	case *pyast.Name:
		return n.ID
	case *pyast.Attribute:
		return exprString(n.Value) + "." + n.Attr
	case *pyast.BinOp:
		return exprString(n.Left) + " " + n.Op + " " + exprString(n.Right)
	case *pyast.Num:
		return n.Text
	}
	return "..."
}
