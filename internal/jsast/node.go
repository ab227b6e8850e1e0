// Package jsast wraps the tree-sitter JavaScript grammar in the small node
// model the bundler rewrites: require calls, import and export declarations,
// and CommonJS export assignments. Everything else in a module is kept as
// source text and reproduced verbatim by Generate.
package jsast

import (
	"encoding/json"
	"strconv"
)

// Kind identifies a node variant.
type Kind int

const (
	KindRequire Kind = iota
	KindImport
	KindExport
	KindExportAssign
	KindText
	KindStmt
	KindSplice
	KindInsertion
)

func (k Kind) String() string {
	switch k {
	case KindRequire:
		return "require"
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	case KindExportAssign:
		return "export-assign"
	case KindText:
		return "text"
	case KindStmt:
		return "stmt"
	case KindSplice:
		return "splice"
	case KindInsertion:
		return "insertion"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range into the module source.
type Span struct {
	Start int
	End   int
}

// Node is the closed set of tree nodes the pipeline dispatches over.
type Node interface {
	Kind() Kind
	node()
}

// SentinelID marks a require site whose target is not part of the bundle.
const SentinelID = -1

// RequireCall is a require("x") call. Calls created while lowering ESM are
// Synthetic and have no source spans.
type RequireCall struct {
	Span      Span
	ArgSpan   Span
	Specifier string
	Synthetic bool

	// Filled in by the ID rewriter.
	Rewritten bool
	ID        int
	External  bool
}

// ArgText renders the argument list of the call.
func (c *RequireCall) ArgText() string {
	switch {
	case !c.Rewritten, c.External:
		return Quote(c.Specifier)
	case c.ID == SentinelID:
		return strconv.Itoa(SentinelID) + ", " + Quote(c.Specifier)
	default:
		return strconv.Itoa(c.ID)
	}
}

// Binding is one imported name: import { Imported as Local }.
type Binding struct {
	Imported string
	Local    string
}

// ImportDecl is a static import statement.
type ImportDecl struct {
	Span      Span
	Source    string
	Default   string
	Namespace string
	Named     []Binding
}

// ExportForm distinguishes the export statement shapes.
type ExportForm int

const (
	ExportDeclaration        ExportForm = iota // export const x = 1
	ExportDefaultDeclaration                   // export default function f() {}
	ExportDefaultExpression                    // export default <expr>
	ExportClause                               // export { a, b as c }
	ExportFrom                                 // export { a } from "x"
	ExportAll                                  // export * from "x"
	ExportAllAs                                // export * as ns from "x"
)

// ExportSpec is one entry of an export clause: export { Local as Exported }.
type ExportSpec struct {
	Local    string
	Exported string
}

// ExportDecl is an export statement.
type ExportDecl struct {
	Span Span
	Form ExportForm
	// Body is the declaration or expression following the export keywords.
	Body Span
	// Names declared by ExportDeclaration / ExportDefaultDeclaration.
	Names    []string
	Function bool

	Specifiers []ExportSpec
	Source     string
	Namespace  string
}

// ExportAssign is a CommonJS export assignment such as module.exports = x.
type ExportAssign struct {
	Span   Span
	Target string
}

// Text is literal synthetic source.
type Text struct {
	Value string
}

// Stmt is a synthetic statement built from Text and RequireCall parts.
type Stmt struct {
	Parts []Node
}

// Splice replaces a source span with Parts. Empty Parts deletes the span.
type Splice struct {
	Span  Span
	Parts []Node
}

// Insertion adds Parts at a source offset.
type Insertion struct {
	At    int
	Parts []Node
}

func (*RequireCall) Kind() Kind  { return KindRequire }
func (*ImportDecl) Kind() Kind   { return KindImport }
func (*ExportDecl) Kind() Kind   { return KindExport }
func (*ExportAssign) Kind() Kind { return KindExportAssign }
func (*Text) Kind() Kind         { return KindText }
func (*Stmt) Kind() Kind         { return KindStmt }
func (*Splice) Kind() Kind       { return KindSplice }
func (*Insertion) Kind() Kind    { return KindInsertion }

func (*RequireCall) node()  {}
func (*ImportDecl) node()   {}
func (*ExportDecl) node()   {}
func (*ExportAssign) node() {}
func (*Text) node()         {}
func (*Stmt) node()         {}
func (*Splice) node()       {}
func (*Insertion) node()    {}

// Declaration is a top-level binding of a module.
type Declaration struct {
	Name string
	// End is the offset just past the statement that declares the name.
	End      int
	Function bool
}

// Tree is the parsed form of one module. It is owned by a single module
// record and mutated in place by the pipeline passes.
type Tree struct {
	Path   string
	Source []byte
	// Nodes holds source-derived nodes and edits in source order.
	Nodes []Node
	// Prologue holds synthetic statements rendered before the body.
	Prologue []Node
	// Declarations lists top-level bindings in source order.
	Declarations []Declaration
}

// Replace swaps old for the given nodes, keeping order. It reports whether
// old was found.
func (t *Tree) Replace(old Node, with ...Node) bool {
	for i, n := range t.Nodes {
		if n != old {
			continue
		}
		rest := append([]Node{}, t.Nodes[i+1:]...)
		t.Nodes = append(append(t.Nodes[:i], with...), rest...)
		return true
	}
	return false
}

// Append adds nodes after the existing ones.
func (t *Tree) Append(nodes ...Node) {
	t.Nodes = append(t.Nodes, nodes...)
}

// Declared returns the top-level declaration of name.
func (t *Tree) Declared(name string) (Declaration, bool) {
	for _, d := range t.Declarations {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}

// Quote renders s as a JavaScript string literal.
func Quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

// Property renders a member access of name on object.
func Property(object, name string) string {
	if isIdentifierName(name) {
		return object + "." + name
	}
	return object + "[" + Quote(name) + "]"
}

func isIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
