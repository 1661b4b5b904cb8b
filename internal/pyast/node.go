// Package pyast is a typed, immutable syntax tree for Python 3 source
// units, built from a tree-sitter concrete syntax tree.
//
// The set of node types is closed: Node can only be implemented inside this
// package, so consumers dispatch with a type switch and treat *Block as the
// catch-all for constructs that have no dedicated type.
package pyast

// Node is implemented by every syntax tree node.
type Node interface {
	// Lineno returns the 1-based line where the node starts.
	Lineno() int
	// Children returns the direct child nodes in source order.
	Children() []Node
	node()
}

type pos struct {
	Line int
}

func (p pos) Lineno() int { return p.Line }
func (pos) node()         {}

// DefKind distinguishes the definitions that FunctionDef stands for.
type DefKind int

const (
	DefFunction DefKind = iota
	DefAsyncFunction
	DefClass
)

// Module is the root of a source unit.
type Module struct {
	pos
	Body []Node
}

// FunctionDef is a function, async function or class definition.
type FunctionDef struct {
	pos
	Kind DefKind
	Name string
	// Head holds decorators, parameters, bases and annotations.
	Head []Node
	Body []Node
}

// Alias is one imported name.
type Alias struct {
	Name   string
	AsName string
}

// Import is "import a.b, c as d".
type Import struct {
	pos
	Names []Alias
}

// ImportFrom is "from .mod import a, b as c". Module is empty for
// "from . import x".
type ImportFrom struct {
	pos
	Module string
	Level  int
	Names  []Alias
}

// Raise is a raise statement; Exc is nil for a bare re-raise.
type Raise struct {
	pos
	Exc   Node
	Cause Node
}

// Try is a try statement with its handlers and clauses.
type Try struct {
	pos
	Body      []Node
	Handlers  []*ExceptHandler
	Orelse    []Node
	Finalbody []Node
}

// ExceptHandler is one except clause. Type is nil for a bare "except:".
type ExceptHandler struct {
	pos
	Type Node
	Name string
	Body []Node
}

// Compare is a chained comparison: Left Ops[0] Comparators[0] Ops[1] ...
type Compare struct {
	pos
	Left        Node
	Ops         []string
	Comparators []Node
}

// BinOp is a binary arithmetic or bitwise operation. Op is the operator
// token, e.g. "+", "%" or "|".
type BinOp struct {
	pos
	Left  Node
	Op    string
	Right Node
}

// BoolOp is "and"/"or" over two or more values.
type BoolOp struct {
	pos
	Op     string
	Values []Node
}

// UnaryOp is "not x", "-x", "+x" or "~x".
type UnaryOp struct {
	pos
	Op      string
	Operand Node
}

// Call is a call expression.
type Call struct {
	pos
	Func     Node
	Args     []Node
	Keywords []*Keyword
}

// Keyword is a keyword argument; Arg is empty for "**mapping".
type Keyword struct {
	pos
	Arg   string
	Value Node
}

// Starred is "*value" in an argument list or display.
type Starred struct {
	pos
	Value Node
}

// Subscript is value[slice].
type Subscript struct {
	pos
	Value Node
	Slice Node
}

// Attribute is value.attr.
type Attribute struct {
	pos
	Value Node
	Attr  string
}

// Name is an identifier reference.
type Name struct {
	pos
	ID string
}

// Str is a text literal, already decoded. Adjacent literals are merged.
type Str struct {
	pos
	S string
}

// Bytes is a bytes literal, already decoded.
type Bytes struct {
	pos
	S []byte
}

// Num is a numeric literal. IsInt reports whether Int holds the exact value.
type Num struct {
	pos
	Text  string
	Int   int64
	IsInt bool
}

// Constant is None, True, False or Ellipsis.
type Constant struct {
	pos
	Text string
}

// JoinedStr is an f-string.
type JoinedStr struct {
	pos
	Values []Node
}

// Tuple is a tuple display, parenthesized or not.
type Tuple struct {
	pos
	Elts []Node
}

// List is a list display.
type List struct {
	pos
	Elts []Node
}

// Set is a set display.
type Set struct {
	pos
	Elts []Node
}

// Dict is a dict display. A nil key stands for "**mapping".
type Dict struct {
	pos
	Keys   []Node
	Values []Node
}

// Assert is an assert statement.
type Assert struct {
	pos
	Test Node
	Msg  Node
}

// Block is any construct without a dedicated type. Kind is the
// tree-sitter node type it was built from.
type Block struct {
	pos
	Kind  string
	Items []Node
}

func (n *Module) Children() []Node { return n.Body }

func (n *FunctionDef) Children() []Node {
	return concat(n.Head, n.Body)
}

func (n *Import) Children() []Node     { return nil }
func (n *ImportFrom) Children() []Node { return nil }

func (n *Raise) Children() []Node { return compact(n.Exc, n.Cause) }

func (n *Try) Children() []Node {
	out := append([]Node(nil), n.Body...)
	for _, h := range n.Handlers {
		out = append(out, h)
	}
	out = append(out, n.Orelse...)
	return append(out, n.Finalbody...)
}

func (n *ExceptHandler) Children() []Node {
	return concat(compact(n.Type), n.Body)
}

func (n *Compare) Children() []Node {
	return concat(compact(n.Left), n.Comparators)
}

func (n *BinOp) Children() []Node   { return compact(n.Left, n.Right) }
func (n *BoolOp) Children() []Node  { return n.Values }
func (n *UnaryOp) Children() []Node { return compact(n.Operand) }

func (n *Call) Children() []Node {
	out := concat(compact(n.Func), n.Args)
	for _, kw := range n.Keywords {
		out = append(out, kw)
	}
	return out
}

func (n *Keyword) Children() []Node   { return compact(n.Value) }
func (n *Starred) Children() []Node   { return compact(n.Value) }
func (n *Subscript) Children() []Node { return compact(n.Value, n.Slice) }
func (n *Attribute) Children() []Node { return compact(n.Value) }
func (n *Name) Children() []Node      { return nil }
func (n *Str) Children() []Node       { return nil }
func (n *Bytes) Children() []Node     { return nil }
func (n *Num) Children() []Node       { return nil }
func (n *Constant) Children() []Node  { return nil }
func (n *JoinedStr) Children() []Node { return n.Values }
func (n *Tuple) Children() []Node     { return n.Elts }
func (n *List) Children() []Node      { return n.Elts }
func (n *Set) Children() []Node       { return n.Elts }

func (n *Dict) Children() []Node {
	return concat(compact(n.Keys...), n.Values)
}

func (n *Assert) Children() []Node { return compact(n.Test, n.Msg) }
func (n *Block) Children() []Node  { return n.Items }

func compact(nodes ...Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func concat(a, b []Node) []Node {
	out := make([]Node, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Unwrap follows the left operand of nested binary operations, so that
// "'a' + x % y" yields the leading string literal.
func Unwrap(n Node) Node {
	for {
		b, ok := n.(*BinOp)
		if !ok {
			return n
		}
		n = b.Left
	}
}
