// Package normalize lowers ES module syntax to CommonJS so every module in a
// graph can be wrapped in the same factory.
package normalize

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/jsbundle/internal/graph"
	"github.com/fluxbase-eu/jsbundle/internal/jsast"
)

// Graph lowers every ESM module of g in place and returns how many were
// lowered. CommonJS modules are left untouched.
func Graph(g *graph.Graph) int {
	if !g.HasESM() {
		return 0
	}
	lowered := 0
	for _, m := range g.Modules() {
		if m.System != graph.ESM {
			continue
		}
		Lower(m.Tree)
		lowered++
		log.Debug().Int("id", m.ID).Str("path", m.Path).Msg("Module lowered to CommonJS")
	}
	return lowered
}

// lowering holds the per-module state of Lower.
type lowering struct {
	tree *jsast.Tree
	// imported holds the local names bound by import statements.
	imported map[string]struct{}
	temps    int

	hoisted []jsast.Node
	imports []jsast.Node
	tail    []jsast.Node
}

// Lower rewrites the import and export statements of t into require calls
// and assignments on exports. Imported bindings are snapshots taken when
// the lowered import runs.
func Lower(t *jsast.Tree) {
	l := &lowering{tree: t, imported: make(map[string]struct{})}

	// Nodes is rewritten while iterating, so work on a copy.
	nodes := append([]jsast.Node(nil), t.Nodes...)
	for _, n := range nodes {
		if d, ok := n.(*jsast.ImportDecl); ok {
			l.bind(d)
		}
	}
	for _, n := range nodes {
		switch v := n.(type) {
		case *jsast.ImportDecl:
			l.lowerImport(v)
		case *jsast.ExportDecl:
			l.lowerExport(v)
		}
	}

	prologue := []jsast.Node{
		text(`"use strict";`),
		text(MarkESModule + "(exports);"),
	}
	prologue = append(prologue, l.hoisted...)
	prologue = append(prologue, l.imports...)
	prologue = append(prologue, l.tail...)
	t.Prologue = append(prologue, t.Prologue...)
}

// bind records the local names an import statement introduces.
func (l *lowering) bind(d *jsast.ImportDecl) {
	for _, name := range []string{d.Default, d.Namespace} {
		if name != "" {
			l.imported[name] = struct{}{}
		}
	}
	for _, b := range d.Named {
		l.imported[b.Local] = struct{}{}
	}
}

func (l *lowering) lowerImport(d *jsast.ImportDecl) {
	l.tree.Replace(d, &jsast.Splice{Span: d.Span})

	switch {
	case d.Default == "" && d.Namespace == "" && len(d.Named) == 0:
		l.imports = append(l.imports, stmt(requireOf(d.Source), text(";")))
		return
	case d.Namespace != "" && d.Default == "" && len(d.Named) == 0:
		l.imports = append(l.imports, stmt(
			text("var "+d.Namespace+" = "+ImportStar+"("), requireOf(d.Source), text(");")))
		return
	case d.Default != "" && d.Namespace == "" && len(d.Named) == 0:
		l.imports = append(l.imports, stmt(
			text("var "+d.Default+" = "+ImportDefault+"("), requireOf(d.Source), text(").default;")))
		return
	}

	tmp := l.temp()
	l.imports = append(l.imports, stmt(text("var "+tmp+" = "), requireOf(d.Source), text(";")))
	var vars []string
	if d.Default != "" {
		vars = append(vars, d.Default+" = "+importedMember(tmp, "default"))
	}
	if d.Namespace != "" {
		vars = append(vars, d.Namespace+" = "+ImportStar+"("+tmp+")")
	}
	for _, b := range d.Named {
		vars = append(vars, b.Local+" = "+importedMember(tmp, b.Imported))
	}
	l.imports = append(l.imports, text("var "+strings.Join(vars, ", ")+";"))
}

func (l *lowering) lowerExport(e *jsast.ExportDecl) {
	prefix := &jsast.Splice{Span: jsast.Span{Start: e.Span.Start, End: e.Body.Start}}
	whole := &jsast.Splice{Span: e.Span}

	switch e.Form {
	case jsast.ExportDeclaration:
		l.tree.Replace(e, prefix)
		if e.Function {
			for _, name := range e.Names {
				l.hoisted = append(l.hoisted, text(assign(name, name)))
			}
			return
		}
		var lines []string
		for _, name := range e.Names {
			lines = append(lines, assign(name, name))
		}
		if len(lines) > 0 {
			l.tree.Append(&jsast.Insertion{At: e.Span.End, Parts: []jsast.Node{text(strings.Join(lines, "\n"))}})
		}

	case jsast.ExportDefaultDeclaration:
		if len(e.Names) == 0 {
			l.lowerDefaultExpression(e)
			return
		}
		l.tree.Replace(e, prefix)
		if e.Function {
			l.hoisted = append(l.hoisted, text(assign("default", e.Names[0])))
			return
		}
		l.tree.Append(&jsast.Insertion{At: e.Span.End, Parts: []jsast.Node{text(assign("default", e.Names[0]))}})

	case jsast.ExportDefaultExpression:
		l.lowerDefaultExpression(e)

	case jsast.ExportClause:
		l.tree.Replace(e, whole)
		for _, spec := range e.Specifiers {
			l.exportLocal(e, spec)
		}

	case jsast.ExportFrom:
		l.tree.Replace(e, whole)
		tmp := l.temp()
		l.imports = append(l.imports, stmt(text("var "+tmp+" = "), requireOf(e.Source), text(";")))
		var lines []string
		for _, spec := range e.Specifiers {
			lines = append(lines, assign(spec.Exported, importedMember(tmp, spec.Local)))
		}
		if len(lines) > 0 {
			l.imports = append(l.imports, text(strings.Join(lines, "\n")))
		}

	case jsast.ExportAll:
		l.tree.Replace(e, whole)
		l.imports = append(l.imports, stmt(
			text(ExportStar+"(exports, "), requireOf(e.Source), text(");")))

	case jsast.ExportAllAs:
		l.tree.Replace(e, whole)
		l.imports = append(l.imports, stmt(
			text(jsast.Property("exports", e.Namespace)+" = "+ImportStar+"("), requireOf(e.Source), text(");")))
	}
}

// lowerDefaultExpression turns "export default <expr>" into an assignment
// of the expression to exports.default.
func (l *lowering) lowerDefaultExpression(e *jsast.ExportDecl) {
	prefix := &jsast.Splice{
		Span:  jsast.Span{Start: e.Span.Start, End: e.Body.Start},
		Parts: []jsast.Node{text(jsast.Property("exports", "default") + " = ")},
	}
	nodes := []jsast.Node{prefix}
	body := strings.TrimSpace(string(l.tree.Source[e.Body.Start:e.Body.End]))
	if !strings.HasSuffix(body, ";") {
		nodes = append(nodes, &jsast.Splice{
			Span:  jsast.Span{Start: e.Span.End, End: e.Span.End},
			Parts: []jsast.Node{text(";")},
		})
	}
	l.tree.Replace(e, nodes...)
}

// exportLocal places the assignment for one "export { local as name }"
// entry so that the binding is initialized when it runs.
func (l *lowering) exportLocal(e *jsast.ExportDecl, spec jsast.ExportSpec) {
	line := text(assign(spec.Exported, spec.Local))
	if _, ok := l.imported[spec.Local]; ok {
		l.tail = append(l.tail, line)
		return
	}
	decl, ok := l.tree.Declared(spec.Local)
	switch {
	case ok && decl.Function:
		l.hoisted = append(l.hoisted, line)
	case ok:
		l.tree.Append(&jsast.Insertion{At: max(decl.End, e.Span.End), Parts: []jsast.Node{line}})
	default:
		l.tree.Append(&jsast.Insertion{At: e.Span.End, Parts: []jsast.Node{line}})
	}
}

func (l *lowering) temp() string {
	for {
		name := "__import" + strconv.Itoa(l.temps)
		l.temps++
		if _, taken := l.tree.Declared(name); !taken {
			return name
		}
	}
}

func importedMember(mod, name string) string {
	if name == "default" {
		return ImportDefault + "(" + mod + ").default"
	}
	return jsast.Property(mod, name)
}

func assign(exported, value string) string {
	return jsast.Property("exports", exported) + " = " + value + ";"
}

func requireOf(specifier string) *jsast.RequireCall {
	return &jsast.RequireCall{Specifier: specifier, Synthetic: true}
}

func text(s string) *jsast.Text {
	return &jsast.Text{Value: s}
}

func stmt(parts ...jsast.Node) *jsast.Stmt {
	return &jsast.Stmt{Parts: parts}
}
