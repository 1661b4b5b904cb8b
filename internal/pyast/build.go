package pyast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// MsgAssertionAlwaysTrue is the warning text for "assert (x, y)".
const MsgAssertionAlwaysTrue = "assertion is always true, perhaps remove parentheses?"

// Warning is a compile-time warning raised while building the tree.
type Warning struct {
	Line int
	Msg  string
}

// SyntaxError reports source that is not valid Python 3.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse builds the syntax tree of one source unit. Front-end warnings are
// returned in source order. Invalid source yields a *SyntaxError.
func Parse(ctx context.Context, path string, src []byte) (*Module, []Warning, error) {
	// new parser per call: parsers are not safe for concurrent use
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil, fmt.Errorf("parsing %s: empty syntax tree", path)
	}

	b := &builder{src: src}
	if root.HasError() {
		bad := firstError(root)
		if bad == nil {
			bad = root
		}
		return nil, nil, &SyntaxError{Line: b.line(bad), Msg: "invalid syntax"}
	}

	mod := &Module{Body: b.stmts(root)}
	if b.err != nil {
		return nil, nil, b.err
	}
	return mod, b.warnings, nil
}

// ParseExpr parses a single expression.
func ParseExpr(ctx context.Context, src string) (Node, error) {
	mod, _, err := Parse(ctx, "<expr>", []byte(src))
	if err != nil {
		return nil, err
	}
	if len(mod.Body) != 1 {
		return nil, errors.New("expected exactly one expression")
	}
	return mod.Body[0], nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}

type builder struct {
	src      []byte
	warnings []Warning
	err      *SyntaxError
}

func (b *builder) line(n *sitter.Node) int {
	row, err := safecast.Conv[int](n.StartPoint().Row)
	if err != nil {
		return 0
	}
	return row + 1
}

func (b *builder) at(n *sitter.Node) pos { return pos{Line: b.line(n)} }

func (b *builder) text(n *sitter.Node) string { return n.Content(b.src) }

func (b *builder) fail(n *sitter.Node, msg string) {
	if b.err == nil {
		b.err = &SyntaxError{Line: b.line(n), Msg: msg}
	}
}

func (b *builder) warn(n *sitter.Node, msg string) {
	b.warnings = append(b.warnings, Warning{Line: b.line(n), Msg: msg})
}

// stmts builds the named children of a module or block.
func (b *builder) stmts(n *sitter.Node) []Node {
	if n == nil {
		return nil
	}
	var out []Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if s := b.build(n.NamedChild(i)); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// named builds every named child of n.
func (b *builder) named(n *sitter.Node) []Node { return b.stmts(n) }

func (b *builder) build(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "comment", "line_continuation":
		return nil
	case "module", "block":
		return &Block{pos: b.at(n), Kind: n.Type(), Items: b.stmts(n)}
	case "expression_statement":
		items := b.named(n)
		if len(items) == 1 {
			return items[0]
		}
		return &Tuple{pos: b.at(n), Elts: items}
	case "function_definition", "class_definition":
		return b.definition(n)
	case "decorated_definition":
		return b.decorated(n)
	case "import_statement":
		return &Import{pos: b.at(n), Names: b.aliases(n, 0)}
	case "import_from_statement", "future_import_statement":
		return b.importFrom(n)
	case "raise_statement":
		return b.raise(n)
	case "try_statement":
		return b.try(n)
	case "comparison_operator":
		return b.compare(n)
	case "binary_operator":
		return &BinOp{
			pos:   b.at(n),
			Left:  b.build(n.ChildByFieldName("left")),
			Op:    n.ChildByFieldName("operator").Type(),
			Right: b.build(n.ChildByFieldName("right")),
		}
	case "boolean_operator":
		return b.boolOp(n)
	case "not_operator":
		return &UnaryOp{pos: b.at(n), Op: "not", Operand: b.build(n.ChildByFieldName("argument"))}
	case "unary_operator":
		return &UnaryOp{
			pos:     b.at(n),
			Op:      n.ChildByFieldName("operator").Type(),
			Operand: b.build(n.ChildByFieldName("argument")),
		}
	case "call":
		return b.call(n)
	case "keyword_argument":
		return &Keyword{
			pos:   b.at(n),
			Arg:   b.text(n.ChildByFieldName("name")),
			Value: b.build(n.ChildByFieldName("value")),
		}
	case "list_splat":
		return &Starred{pos: b.at(n), Value: b.single(n)}
	case "subscript":
		return b.subscript(n)
	case "attribute":
		return &Attribute{
			pos:   b.at(n),
			Value: b.build(n.ChildByFieldName("object")),
			Attr:  b.text(n.ChildByFieldName("attribute")),
		}
	case "identifier":
		return &Name{pos: b.at(n), ID: b.text(n)}
	case "string":
		return b.str(n)
	case "concatenated_string":
		return b.concat(n)
	case "integer", "float":
		return b.num(n)
	case "true", "false", "none", "ellipsis":
		return &Constant{pos: b.at(n), Text: b.text(n)}
	case "tuple", "expression_list", "pattern_list":
		return &Tuple{pos: b.at(n), Elts: b.named(n)}
	case "list":
		return &List{pos: b.at(n), Elts: b.named(n)}
	case "set":
		return &Set{pos: b.at(n), Elts: b.named(n)}
	case "dictionary":
		return b.dict(n)
	case "parenthesized_expression":
		if inner := b.named(n); len(inner) == 1 {
			return inner[0]
		}
	case "assert_statement":
		return b.assert(n)
	case "print_statement":
		b.fail(n, "Missing parentheses in call to 'print'. Did you mean print(...)?")
		return nil
	case "exec_statement":
		b.fail(n, "Missing parentheses in call to 'exec'. Did you mean exec(...)?")
		return nil
	}
	return &Block{pos: b.at(n), Kind: n.Type(), Items: b.named(n)}
}

// single builds the only named child of a wrapper node.
func (b *builder) single(n *sitter.Node) Node {
	items := b.named(n)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func (b *builder) definition(n *sitter.Node) *FunctionDef {
	def := &FunctionDef{pos: b.at(n), Kind: DefFunction}
	if n.Type() == "class_definition" {
		def.Kind = DefClass
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c.Type() == "async":
			def.Kind = DefAsyncFunction
		case c.Type() == "identifier" && def.Name == "":
			def.Name = b.text(c)
		case c.Type() == "block":
			def.Body = b.stmts(c)
		case c.IsNamed():
			if h := b.build(c); h != nil {
				def.Head = append(def.Head, h)
			}
		}
	}
	return def
}

func (b *builder) decorated(n *sitter.Node) Node {
	var decorators []Node
	var def *FunctionDef
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "decorator":
			decorators = append(decorators, b.named(c)...)
		case "function_definition", "class_definition":
			def = b.definition(c)
		}
	}
	if def == nil {
		return &Block{pos: b.at(n), Kind: n.Type(), Items: decorators}
	}
	def.Head = append(decorators, def.Head...)
	return def
}

// aliases collects imported names starting at child index from.
func (b *builder) aliases(n *sitter.Node, from int) []Alias {
	var names []Alias
	for i := from; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "dotted_name", "identifier":
			names = append(names, Alias{Name: b.text(c)})
		case "aliased_import":
			names = append(names, Alias{
				Name:   b.text(c.ChildByFieldName("name")),
				AsName: b.text(c.ChildByFieldName("alias")),
			})
		case "wildcard_import":
			names = append(names, Alias{Name: "*"})
		}
	}
	return names
}

func (b *builder) importFrom(n *sitter.Node) *ImportFrom {
	imp := &ImportFrom{pos: b.at(n)}
	if n.Type() == "future_import_statement" {
		imp.Module = "__future__"
		imp.Names = b.aliases(n, 0)
		return imp
	}
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return imp
	}
	if mod.Type() == "relative_import" {
		for i := 0; i < int(mod.NamedChildCount()); i++ {
			c := mod.NamedChild(i)
			switch c.Type() {
			case "import_prefix":
				imp.Level = strings.Count(b.text(c), ".")
			case "dotted_name":
				imp.Module = b.text(c)
			}
		}
	} else {
		imp.Module = b.text(mod)
	}
	// the module name is always the first named child
	imp.Names = b.aliases(n, 1)
	return imp
}

func (b *builder) raise(n *sitter.Node) *Raise {
	r := &Raise{pos: b.at(n)}
	afterFrom := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c.Type() == "from":
			afterFrom = true
		case !c.IsNamed() || c.Type() == "comment":
		case afterFrom:
			r.Cause = b.build(c)
		default:
			r.Exc = b.build(c)
		}
	}
	return r
}

func (b *builder) try(n *sitter.Node) *Try {
	t := &Try{pos: b.at(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "block":
			t.Body = b.stmts(c)
		case "except_clause", "except_group_clause":
			t.Handlers = append(t.Handlers, b.handler(c))
		case "else_clause":
			t.Orelse = b.stmts(c.ChildByFieldName("body"))
		case "finally_clause":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if blk := c.NamedChild(j); blk.Type() == "block" {
					t.Finalbody = b.stmts(blk)
				}
			}
		}
	}
	return t
}

func (b *builder) handler(n *sitter.Node) *ExceptHandler {
	h := &ExceptHandler{pos: b.at(n)}
	afterAs := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "as":
			afterAs = true
			continue
		case ",":
			b.fail(c, "multiple exception types must be parenthesized")
			continue
		case "block":
			h.Body = b.stmts(c)
			continue
		case "as_pattern":
			// "except E as e" may parse as a single as-pattern expression
			h.Type = b.build(c.NamedChild(0))
			if target := c.ChildByFieldName("alias"); target != nil {
				h.Name = b.text(target)
			}
			continue
		}
		if !c.IsNamed() || c.Type() == "comment" {
			continue
		}
		if afterAs {
			h.Name = b.text(c)
		} else {
			h.Type = b.build(c)
		}
	}
	return h
}

func (b *builder) compare(n *sitter.Node) *Compare {
	cmp := &Compare{pos: b.at(n)}
	var operands []Node
	pendingOp := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsNamed() {
			if c.Type() == "comment" {
				continue
			}
			operands = append(operands, b.build(c))
			pendingOp = false
			continue
		}
		op := c.Type()
		if op == "<>" {
			b.fail(c, "invalid syntax")
		}
		// "is" "not" and "not" "in" may arrive as separate tokens
		if pendingOp && len(cmp.Ops) > 0 {
			cmp.Ops[len(cmp.Ops)-1] += " " + op
			continue
		}
		cmp.Ops = append(cmp.Ops, op)
		pendingOp = true
	}
	if len(operands) > 0 {
		cmp.Left = operands[0]
		cmp.Comparators = operands[1:]
	}
	b.checkIsLiteral(n, cmp)
	return cmp
}

func (b *builder) checkIsLiteral(n *sitter.Node, cmp *Compare) {
	left := cmp.Left
	for i, op := range cmp.Ops {
		if i >= len(cmp.Comparators) {
			return
		}
		right := cmp.Comparators[i]
		if op == "is" || op == "is not" {
			lit := literalType(left)
			if lit == "" {
				lit = literalType(right)
			}
			if lit != "" {
				want := `"=="`
				if op == "is not" {
					want = `"!="`
				}
				b.warn(n, fmt.Sprintf(`"%s" with '%s' literal. Did you mean %s?`, op, lit, want))
				return
			}
		}
		left = right
	}
}

// literalType returns the Python type name of a constant literal other
// than None, True, False and Ellipsis, or "".
func literalType(n Node) string {
	switch v := n.(type) {
	case *Str:
		return "str"
	case *Bytes:
		return "bytes"
	case *Num:
		return v.TypeName()
	case *UnaryOp:
		if v.Op == "-" || v.Op == "+" {
			if num, ok := v.Operand.(*Num); ok {
				return num.TypeName()
			}
		}
	}
	return ""
}

func (b *builder) boolOp(n *sitter.Node) *BoolOp {
	op := n.ChildByFieldName("operator").Type()
	out := &BoolOp{pos: b.at(n), Op: op}
	left := n.ChildByFieldName("left")
	if left != nil && left.Type() == "boolean_operator" && left.ChildByFieldName("operator").Type() == op {
		out.Values = b.boolOp(left).Values
	} else {
		out.Values = compact(b.build(left))
	}
	out.Values = append(out.Values, compact(b.build(n.ChildByFieldName("right")))...)
	return out
}

func (b *builder) call(n *sitter.Node) *Call {
	call := &Call{pos: b.at(n), Func: b.build(n.ChildByFieldName("function"))}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return call
	}
	if args.Type() != "argument_list" {
		call.Args = compact(b.build(args))
		return call
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		switch c.Type() {
		case "comment":
		case "keyword_argument":
			call.Keywords = append(call.Keywords, b.build(c).(*Keyword))
		case "dictionary_splat":
			call.Keywords = append(call.Keywords, &Keyword{pos: b.at(c), Value: b.single(c)})
		default:
			if a := b.build(c); a != nil {
				call.Args = append(call.Args, a)
			}
		}
	}
	return call
}

func (b *builder) subscript(n *sitter.Node) *Subscript {
	sub := &Subscript{pos: b.at(n)}
	items := b.named(n)
	if len(items) == 0 {
		return sub
	}
	sub.Value = items[0]
	switch idx := items[1:]; len(idx) {
	case 0:
	case 1:
		sub.Slice = idx[0]
	default:
		sub.Slice = &Tuple{pos: sub.pos, Elts: idx}
	}
	return sub
}

func (b *builder) dict(n *sitter.Node) *Dict {
	d := &Dict{pos: b.at(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "pair":
			d.Keys = append(d.Keys, b.build(c.ChildByFieldName("key")))
			d.Values = append(d.Values, b.build(c.ChildByFieldName("value")))
		case "dictionary_splat":
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, b.single(c))
		}
	}
	return d
}

func (b *builder) assert(n *sitter.Node) *Assert {
	a := &Assert{pos: b.at(n)}
	items := b.named(n)
	if len(items) > 0 {
		a.Test = items[0]
	}
	if len(items) > 1 {
		a.Msg = items[1]
	}
	if t, ok := a.Test.(*Tuple); ok && len(t.Elts) > 0 {
		b.warn(n, MsgAssertionAlwaysTrue)
	}
	return a
}

func (b *builder) literal(n *sitter.Node) *literal {
	lit, err := decodeLiteral(b.text(n))
	if err != nil {
		b.fail(n, err.Error())
		return nil
	}
	for _, w := range lit.warnings {
		b.warn(n, w)
	}
	return lit
}

func (b *builder) str(n *sitter.Node) Node {
	lit := b.literal(n)
	switch {
	case lit == nil:
		return nil
	case lit.isFormat():
		return &JoinedStr{pos: b.at(n), Values: b.interpolations(n)}
	case lit.isBytes():
		return &Bytes{pos: b.at(n), S: lit.bytes}
	}
	return &Str{pos: b.at(n), S: lit.text}
}

func (b *builder) interpolations(n *sitter.Node) []Node {
	var out []Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "interpolation" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			e := c.NamedChild(j)
			if e.Type() == "type_conversion" {
				continue
			}
			if v := b.build(e); v != nil {
				out = append(out, v)
			}
		}
	}
	return out
}

// concat merges implicitly concatenated literals like Python does.
func (b *builder) concat(n *sitter.Node) Node {
	var parts []Node
	var text strings.Builder
	var data []byte
	sawBytes, sawText, sawFormat := false, false, false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "string" {
			continue
		}
		lit := b.literal(c)
		if lit == nil {
			return nil
		}
		switch {
		case lit.isBytes():
			sawBytes = true
			data = append(data, lit.bytes...)
		case lit.isFormat():
			sawText, sawFormat = true, true
			parts = append(parts, b.interpolations(c)...)
		default:
			sawText = true
			text.WriteString(lit.text)
			parts = append(parts, &Str{pos: b.at(c), S: lit.text})
		}
	}
	switch {
	case sawBytes && sawText:
		b.fail(n, "cannot mix bytes and nonbytes literals")
		return nil
	case sawBytes:
		return &Bytes{pos: b.at(n), S: data}
	case sawFormat:
		return &JoinedStr{pos: b.at(n), Values: parts}
	}
	return &Str{pos: b.at(n), S: text.String()}
}

func (b *builder) num(n *sitter.Node) Node {
	text := b.text(n)
	num := &Num{pos: b.at(n), Text: text}
	lower := strings.ToLower(text)
	switch {
	case strings.HasSuffix(lower, "l"):
		b.fail(n, "invalid decimal literal")
		return nil
	case len(text) > 1 && text[0] == '0' && text[1] >= '0' && text[1] <= '9':
		if strings.Trim(strings.ReplaceAll(text, "_", ""), "0") != "" {
			b.fail(n, "leading zeros in decimal integer literals are not permitted; use an 0o prefix for octal integers")
			return nil
		}
		num.IsInt = true
		return num
	}
	if num.TypeName() == "int" {
		if v, err := strconv.ParseInt(text, 0, 64); err == nil {
			num.Int, num.IsInt = v, true
		}
	}
	return num
}

// TypeName returns "int", "float" or "complex".
func (n *Num) TypeName() string {
	lower := strings.ToLower(n.Text)
	switch {
	case strings.HasSuffix(lower, "j"):
		return "complex"
	case strings.HasPrefix(lower, "0x"), strings.HasPrefix(lower, "0o"), strings.HasPrefix(lower, "0b"):
		return "int"
	case strings.ContainsAny(lower, ".e"):
		return "float"
	}
	return "int"
}
