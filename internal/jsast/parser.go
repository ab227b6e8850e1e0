package jsast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Parser turns module source into a Tree.
//
// Parser is safe for concurrent use; every Parse call creates its own
// tree-sitter parser instance.
type Parser struct {
	lang *sitter.Language
}

// NewParser creates a parser for JavaScript sources.
func NewParser() *Parser {
	return &Parser{lang: javascript.GetLanguage()}
}

// Parse parses src. Files ending in .json become a single module.exports
// assignment. Malformed input returns a *SyntaxError.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSON(path, src)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(p.lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxErrorAt(path, root, src)
	}

	t := &Tree{Path: path, Source: src}
	c := &collector{src: src, tree: t}
	c.walk(root)
	c.declarations(root)
	return t, nil
}

func parseJSON(path string, src []byte) (*Tree, error) {
	trimmed := bytes.TrimSpace(src)
	if !json.Valid(trimmed) {
		return nil, &SyntaxError{Path: path, Detail: "invalid JSON"}
	}
	return &Tree{
		Path: path,
		Prologue: []Node{&Stmt{Parts: []Node{
			&Text{Value: "module.exports = " + string(trimmed) + ";"},
		}}},
	}, nil
}

func syntaxErrorAt(path string, root *sitter.Node, src []byte) error {
	bad := firstError(root)
	if bad == nil {
		return &SyntaxError{Path: path, Detail: "unexpected input"}
	}
	detail := "unexpected token"
	if bad.IsMissing() {
		detail = "missing " + bad.Type()
	} else if text := bad.Content(src); text != "" {
		if len(text) > 20 {
			text = text[:20] + "..."
		}
		detail = "unexpected " + strconv.Quote(text)
	}
	pt := bad.StartPoint()
	return &SyntaxError{
		Path:   path,
		Line:   int(pt.Row) + 1,
		Column: int(pt.Column) + 1,
		Detail: detail,
	}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

type collector struct {
	src  []byte
	tree *Tree
}

func (c *collector) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

func span(n *sitter.Node) Span {
	return Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// walk records interesting nodes in pre-order.
func (c *collector) walk(n *sitter.Node) {
	switch n.Type() {
	case "hashbang_line":
		// only valid as the first line of a script, never inside a factory
		c.tree.Nodes = append(c.tree.Nodes, &Splice{Span: span(n)})
		return
	case "import_statement":
		if decl := c.importDecl(n); decl != nil {
			c.tree.Nodes = append(c.tree.Nodes, decl)
		}
		return
	case "export_statement":
		if decl := c.exportDecl(n); decl != nil {
			c.tree.Nodes = append(c.tree.Nodes, decl)
		}
	case "call_expression":
		if call := c.requireCall(n); call != nil {
			c.tree.Nodes = append(c.tree.Nodes, call)
		}
	case "expression_statement":
		if assign := c.exportAssign(n); assign != nil {
			c.tree.Nodes = append(c.tree.Nodes, assign)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c.walk(n.Child(i))
	}
}

func (c *collector) requireCall(n *sitter.Node) *RequireCall {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || fn.Type() != "identifier" || c.text(fn) != "require" {
		return nil
	}
	operands := namedChildren(args)
	if len(operands) != 1 || operands[0].Type() != "string" {
		return nil
	}
	return &RequireCall{
		Span:      span(n),
		ArgSpan:   span(operands[0]),
		Specifier: c.stringValue(operands[0]),
	}
}

func (c *collector) importDecl(n *sitter.Node) *ImportDecl {
	source := n.ChildByFieldName("source")
	if source == nil {
		return nil
	}
	decl := &ImportDecl{Span: span(n), Source: c.stringValue(source)}
	for _, child := range namedChildren(n) {
		if child.Type() != "import_clause" {
			continue
		}
		for _, part := range namedChildren(child) {
			switch part.Type() {
			case "identifier":
				decl.Default = c.text(part)
			case "namespace_import":
				if id := lastOfType(part, "identifier"); id != nil {
					decl.Namespace = c.text(id)
				}
			case "named_imports":
				for _, spec := range namedChildren(part) {
					if spec.Type() != "import_specifier" {
						continue
					}
					decl.Named = append(decl.Named, c.binding(spec))
				}
			}
		}
	}
	return decl
}

func (c *collector) binding(spec *sitter.Node) Binding {
	name := spec.ChildByFieldName("name")
	alias := spec.ChildByFieldName("alias")
	if name == nil {
		ids := namedChildren(spec)
		if len(ids) > 0 {
			name = ids[0]
		}
		if len(ids) > 1 {
			alias = ids[1]
		}
	}
	b := Binding{}
	if name != nil {
		b.Imported = c.nameValue(name)
		b.Local = b.Imported
	}
	if alias != nil {
		b.Local = c.nameValue(alias)
	}
	return b
}

func (c *collector) exportDecl(n *sitter.Node) *ExportDecl {
	decl := &ExportDecl{Span: span(n)}
	isDefault := false
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "default" {
			isDefault = true
		}
	}
	if source := n.ChildByFieldName("source"); source != nil {
		decl.Source = c.stringValue(source)
	}

	if d := n.ChildByFieldName("declaration"); d != nil {
		decl.Body = span(d)
		decl.Names = c.declaredNames(d)
		decl.Function = isFunctionDeclaration(d)
		decl.Form = ExportDeclaration
		if isDefault {
			decl.Form = ExportDefaultDeclaration
		}
		return decl
	}
	if v := n.ChildByFieldName("value"); v != nil {
		decl.Form = ExportDefaultExpression
		decl.Body = Span{Start: int(v.StartByte()), End: int(n.EndByte())}
		return decl
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "export_clause":
			for _, spec := range namedChildren(child) {
				if spec.Type() != "export_specifier" {
					continue
				}
				b := c.binding(spec)
				decl.Specifiers = append(decl.Specifiers, ExportSpec{Local: b.Imported, Exported: b.Local})
			}
			decl.Form = ExportClause
			if decl.Source != "" {
				decl.Form = ExportFrom
			}
			return decl
		case "namespace_export":
			decl.Form = ExportAllAs
			if id := lastNamed(child); id != nil {
				decl.Namespace = c.nameValue(id)
			}
			return decl
		}
	}

	// export * from "x", or export * as ns from "x" on grammars without
	// a namespace_export node.
	if decl.Source == "" {
		return nil
	}
	decl.Form = ExportAll
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child.Type() == "identifier" {
			decl.Form = ExportAllAs
			decl.Namespace = c.text(child)
		}
	}
	return decl
}

func (c *collector) exportAssign(n *sitter.Node) *ExportAssign {
	expr := firstNamed(n)
	for expr != nil && expr.Type() == "assignment_expression" {
		left := expr.ChildByFieldName("left")
		if left != nil {
			if target, ok := c.exportTarget(left); ok {
				return &ExportAssign{Span: span(n), Target: target}
			}
		}
		expr = expr.ChildByFieldName("right")
	}
	return nil
}

// exportTarget recognizes exports, module.exports and properties of either.
func (c *collector) exportTarget(left *sitter.Node) (string, bool) {
	text := c.text(left)
	switch left.Type() {
	case "identifier":
		return text, text == "exports"
	case "member_expression", "subscript_expression":
		obj := left.ChildByFieldName("object")
		if obj == nil {
			return "", false
		}
		objText := c.text(obj)
		if objText == "exports" || objText == "module.exports" {
			return text, true
		}
		if objText == "module" {
			prop := left.ChildByFieldName("property")
			return text, prop != nil && c.text(prop) == "exports"
		}
	}
	return "", false
}

// declarations records the top-level bindings of the program.
func (c *collector) declarations(root *sitter.Node) {
	for _, stmt := range namedChildren(root) {
		end := int(stmt.EndByte())
		d := stmt
		if stmt.Type() == "export_statement" {
			d = stmt.ChildByFieldName("declaration")
			if d == nil {
				continue
			}
		}
		fn := isFunctionDeclaration(d)
		for _, name := range c.declaredNames(d) {
			c.tree.Declarations = append(c.tree.Declarations, Declaration{Name: name, End: end, Function: fn})
		}
	}
}

func isFunctionDeclaration(n *sitter.Node) bool {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		return true
	}
	return false
}

func (c *collector) declaredNames(n *sitter.Node) []string {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "class_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			return []string{c.text(name)}
		}
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range namedChildren(n) {
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil {
				names = c.patternNames(name, names)
			}
		}
		return names
	}
	return nil
}

// patternNames collects identifiers bound by a destructuring pattern.
func (c *collector) patternNames(n *sitter.Node, names []string) []string {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return append(names, c.text(n))
	case "pair_pattern":
		if v := n.ChildByFieldName("value"); v != nil {
			return c.patternNames(v, names)
		}
		return names
	case "assignment_pattern", "object_assignment_pattern":
		if l := n.ChildByFieldName("left"); l != nil {
			return c.patternNames(l, names)
		}
		return names
	}
	for _, child := range namedChildren(n) {
		names = c.patternNames(child, names)
	}
	return names
}

// nameValue reads an identifier or a string used as a module export name.
func (c *collector) nameValue(n *sitter.Node) string {
	if n.Type() == "string" {
		return c.stringValue(n)
	}
	return c.text(n)
}

func (c *collector) stringValue(n *sitter.Node) string {
	raw := c.text(n)
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') {
		raw = raw[1 : len(raw)-1]
	}
	return unescape(raw)
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	children := namedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func lastNamed(n *sitter.Node) *sitter.Node {
	children := namedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return children[len(children)-1]
}

func lastOfType(n *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node
	for _, child := range namedChildren(n) {
		if child.Type() == typ {
			found = child
		}
	}
	return found
}

// unescape decodes the escape sequences of a JavaScript string body.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 == len(s) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					b.WriteRune(rune(v))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		case 'u':
			if i+4 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
