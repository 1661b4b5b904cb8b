package analyzer

import (
	"iter"
	"maps"
	"slices"
	"strconv"
	"strings"

	"pydiatra/internal/analyzer/detectors"
	actx "pydiatra/internal/context"
	"pydiatra/internal/models"
	"pydiatra/internal/pyast"
	"pydiatra/internal/refdata"
	"pydiatra/internal/sysversion"
)

// Kinds of the private tags that pass information up to an enclosing try
// statement.
const (
	kindReraise        = models.PrivateMarker + "reraise"
	kindModernPIL      = models.PrivateMarker + "modern-pil-import"
	kindHardcodedErrno = models.PrivateMarker + "hardcoded-errno-value"
	kindObsoletePIL    = "obsolete-pil-import"
)

// Visitor walks the syntax tree of one source unit and yields tags in
// traversal order, private ones included.
type Visitor struct {
	path string
	data *refdata.Data

	ctx        *actx.AnalysisContext
	regexp     *detectors.RegexpDetector
	formatting *detectors.FormattingDetector
	codeCopy   *detectors.CodeCopyDetector
	err        error
}

// NewVisitor returns a visitor for the unit at path. data must not be nil.
func NewVisitor(path string, data *refdata.Data) *Visitor {
	return &Visitor{
		path:       path,
		data:       data,
		regexp:     detectors.NewRegexpDetector(),
		formatting: detectors.NewFormattingDetector(),
		codeCopy:   detectors.NewCodeCopyDetector(),
	}
}

// Visit returns the tags of the tree rooted at n. Every iteration starts
// a fresh traversal. Iteration stops early on an internal error, which
// Err then reports.
func (v *Visitor) Visit(n pyast.Node) iter.Seq[models.Tag] {
	return func(yield func(models.Tag) bool) {
		v.ctx = actx.NewAnalysisContext(v.path, v.data)
		v.err = nil
		v.visit(n, yield)
	}
}

// Err returns the error that stopped the last traversal, if any.
func (v *Visitor) Err() error {
	return v.err
}

func (v *Visitor) tag(loc any, kind string, args ...any) models.Tag {
	return models.MustTag(v.path, loc, kind, args...)
}

// emitter appends tags located at loc to out.
func (v *Visitor) emitter(loc any, out *[]models.Tag) detectors.Emit {
	return func(kind string, args ...any) {
		*out = append(*out, v.tag(loc, kind, args...))
	}
}

// visit yields the tags of n and its descendants. It returns false when
// the traversal must stop.
func (v *Visitor) visit(n pyast.Node, yield func(models.Tag) bool) bool {
	if n == nil {
		return true
	}
	var own []models.Tag
	switch n := n.(type) {
	case *pyast.Try:
		return v.visitTry(n, yield)
	case *pyast.Raise:
		own = v.checkRaise(n)
	case *pyast.ExceptHandler:
		own = v.checkHandler(n)
	case *pyast.Import:
		own = v.checkImport(n)
	case *pyast.ImportFrom:
		own = v.checkImportFrom(n)
	case *pyast.Compare:
		own = v.checkCompare(n)
	case *pyast.Subscript:
		own = v.checkSubscript(n)
	case *pyast.Str:
		own = v.checkLiteral(n.S)
	case *pyast.Bytes:
		own = v.checkLiteral(string(n.S))
	case *pyast.BinOp:
		v.formatting.CheckPercent(n, v.emitter(n, &own))
	case *pyast.Call:
		own = v.checkCall(n)
	}
	if v.err != nil {
		return false
	}
	for _, t := range own {
		if !yield(t) {
			return false
		}
	}
	for _, c := range n.Children() {
		if !v.visit(c, yield) {
			return false
		}
	}
	return true
}

// collect gathers the tags of nodes instead of yielding them.
func (v *Visitor) collect(nodes ...pyast.Node) ([]models.Tag, bool) {
	var out []models.Tag
	for _, c := range nodes {
		v.visit(c, func(t models.Tag) bool {
			out = append(out, t)
			return true
		})
		if v.err != nil {
			return nil, false
		}
	}
	return out, true
}

func (v *Visitor) visitTry(n *pyast.Try, yield func(models.Tag) bool) bool {
	body, ok := v.collect(n.Body...)
	if !ok {
		return false
	}
	handlers := make([]handlerTags, len(n.Handlers))
	for i, h := range n.Handlers {
		tags, ok := v.collect(h)
		if !ok {
			return false
		}
		handlers[i] = handlerTags{Line: h.Lineno(), Bare: h.Type == nil, Tags: tags}
	}
	for _, t := range reconcileTry(v.path, v.data.Errno, body, handlers) {
		if !yield(t) {
			return false
		}
	}
	for _, c := range slices.Concat(n.Orelse, n.Finalbody) {
		if !v.visit(c, yield) {
			return false
		}
	}
	return true
}

func isStr(n pyast.Node) bool {
	_, ok := pyast.Unwrap(n).(*pyast.Str)
	return ok
}

func (v *Visitor) checkRaise(n *pyast.Raise) []models.Tag {
	var out []models.Tag
	if n.Exc == nil {
		out = append(out, v.tag(nil, kindReraise))
	}
	if isStr(n.Exc) {
		out = append(out, v.tag(n, "string-exception"))
	}
	return out
}

func (v *Visitor) checkHandler(n *pyast.ExceptHandler) []models.Tag {
	var out []models.Tag
	if v.data.Exceptions[n.Name] {
		out = append(out, v.tag(n, "except-shadows-builtin", n.Name))
	}
	var types []pyast.Node
	switch t := n.Type.(type) {
	case nil:
	case *pyast.Tuple:
		types = t.Elts
	default:
		types = []pyast.Node{t}
	}
	if slices.ContainsFunc(types, isStr) {
		out = append(out, v.tag(n, "string-exception"))
	}
	return out
}

func sortedSet(set map[string]bool) []string {
	return slices.Sorted(maps.Keys(set))
}

func (v *Visitor) checkImport(n *pyast.Import) []models.Tag {
	obsolete := make(map[string]bool)
	modern := make(map[string]bool)
	for _, a := range n.Names {
		v.ctx.BindImport(a.Name, a.AsName)
		if v.data.PILModules[a.Name] {
			obsolete[a.Name] = true
		}
		if mod, ok := strings.CutPrefix(a.Name, "PIL."); ok && v.data.PILModules[mod] {
			modern[mod] = true
		}
	}
	var out []models.Tag
	for _, mod := range sortedSet(obsolete) {
		out = append(out, v.tag(n, kindObsoletePIL, mod))
	}
	for _, mod := range sortedSet(modern) {
		out = append(out, v.tag(n, kindModernPIL, mod))
	}
	return out
}

func (v *Visitor) checkImportFrom(n *pyast.ImportFrom) []models.Tag {
	if n.Level != 0 {
		return nil
	}
	if v.data.PILModules[n.Module] {
		return []models.Tag{v.tag(n, kindObsoletePIL, n.Module)}
	}
	if n.Module != "PIL" {
		return nil
	}
	modern := make(map[string]bool)
	for _, a := range n.Names {
		if v.data.PILModules[a.Name] {
			modern[a.Name] = true
		}
	}
	var out []models.Tag
	for _, mod := range sortedSet(modern) {
		out = append(out, v.tag(n, kindModernPIL, mod))
	}
	return out
}

func (v *Visitor) checkCompare(n *pyast.Compare) []models.Tag {
	var out []models.Tag
	left := n.Left
	for i, op := range n.Ops {
		right := n.Comparators[i]
		out = append(out, v.checkErrno(n, left, op, right)...)
		out = append(out, v.checkVersion(n, left, op, right)...)
		left = right
	}
	return out
}

func (v *Visitor) checkErrno(n *pyast.Compare, left pyast.Node, op string, right pyast.Node) []models.Tag {
	if _, ok := left.(*pyast.Attribute); !ok {
		left, right = right, left
	}
	attr, ok := left.(*pyast.Attribute)
	if !ok || attr.Attr != "errno" || (op != "==" && op != "!=") {
		return nil
	}
	num, ok := right.(*pyast.Num)
	if !ok || !num.IsInt {
		return nil
	}
	code := int(num.Int)
	if _, ok := v.data.Errno[code]; !ok {
		return nil
	}
	return []models.Tag{v.tag(n, kindHardcodedErrno, code)}
}

// mirrored maps a comparison operator to the one that gives the same
// result with the operands swapped.
var mirrored = map[string]string{
	"<": ">", "<=": ">=", ">": "<", ">=": "<=", "==": "==", "!=": "!=",
}

// sysVersionAttr returns "version" or "hexversion" when n reads that
// attribute of the sys module; a slice of sys.version counts as well.
func sysVersionAttr(n pyast.Node) string {
	if s, ok := n.(*pyast.Subscript); ok {
		if sysVersionAttr(s.Value) == "version" {
			return "version"
		}
		return ""
	}
	attr, ok := n.(*pyast.Attribute)
	if !ok {
		return ""
	}
	mod, ok := attr.Value.(*pyast.Name)
	if !ok || mod.ID != "sys" {
		return ""
	}
	if attr.Attr == "version" || attr.Attr == "hexversion" {
		return attr.Attr
	}
	return ""
}

func (v *Visitor) checkVersion(n *pyast.Compare, left pyast.Node, op string, right pyast.Node) []models.Tag {
	if _, ok := mirrored[op]; !ok {
		return nil
	}
	name := sysVersionAttr(left)
	if name == "" {
		name = sysVersionAttr(right)
		left, right = right, left
		op = mirrored[op]
	}
	switch name {
	case "version":
		s, ok := right.(*pyast.Str)
		if !ok {
			return nil
		}
		t, err := sysversion.VersionToTuple(s.S)
		if err != nil {
			return []models.Tag{v.tag(n, "sys.version-comparison")}
		}
		return []models.Tag{v.tag(n, "sys.version-comparison", versionInfoRewrite(op, t)...)}
	case "hexversion":
		num, ok := right.(*pyast.Num)
		if !ok || !num.IsInt {
			return nil
		}
		t, err := sysversion.HexversionToTuple(num.Int)
		if err != nil {
			return []models.Tag{v.tag(n, "sys.hexversion-comparison")}
		}
		return []models.Tag{v.tag(n, "sys.hexversion-comparison", versionInfoRewrite(op, t)...)}
	}
	return nil
}

// versionInfoRewrite suggests the sys.version_info comparison equivalent
// to comparing against t. Equality only holds for a prefix of the tuple.
func versionInfoRewrite(op string, t sysversion.Tuple) []any {
	lhs := "sys.version_info"
	if op == "==" || op == "!=" {
		lhs += "[:" + strconv.Itoa(len(t)) + "]"
	}
	return []any{"->", lhs, op, t.String()}
}

func (v *Visitor) checkSubscript(n *pyast.Subscript) []models.Tag {
	call, ok := n.Value.(*pyast.Call)
	if !ok {
		return nil
	}
	var fn string
	switch f := call.Func.(type) {
	case *pyast.Name:
		fn = f.ID
	case *pyast.Attribute:
		fn = f.Attr
	}
	if fn != "mkstemp" {
		return nil
	}
	if idx, ok := n.Slice.(*pyast.Num); ok && idx.IsInt && idx.Int == 1 {
		return []models.Tag{v.tag(n, "mkstemp-file-descriptor-leak")}
	}
	return nil
}

func (v *Visitor) checkLiteral(text string) []models.Tag {
	var out []models.Tag
	v.codeCopy.Check(v.ctx, text, v.emitter(nil, &out))
	return out
}

func (v *Visitor) checkCall(n *pyast.Call) []models.Tag {
	var out []models.Tag
	emit := v.emitter(n, &out)
	v.formatting.CheckBrace(n, emit)
	if err := v.regexp.Check(v.ctx, n, emit); err != nil {
		v.err = err
	}
	return out
}
