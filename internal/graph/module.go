// Package graph discovers the modules reachable from an entry file and
// assigns each one a stable integer ID.
package graph

import (
	"fmt"

	"github.com/fluxbase-eu/jsbundle/internal/jsast"
)

// ModuleSystem is the module system a file is written in.
type ModuleSystem int

const (
	CJS ModuleSystem = iota
	ESM
)

func (s ModuleSystem) String() string {
	if s == ESM {
		return "esm"
	}
	return "cjs"
}

// Evidence names the construct that decided a module's classification.
type Evidence string

const (
	EvidenceImport            Evidence = "import"
	EvidenceExport            Evidence = "export"
	EvidenceRequire           Evidence = "require"
	EvidenceExportsAssignment Evidence = "exports-assignment"
	EvidenceDefault           Evidence = "default"
)

// Edge is one dependency reference found in a module, in source order.
type Edge struct {
	Specifier string
	// Path is the resolved file, empty when resolution failed or the
	// specifier is external.
	Path     string
	External bool
}

// Module is one file included in the bundle.
type Module struct {
	ID   int
	Path string
	// SearchRoot is the package directory the module belongs to, or the
	// entry directory for first-party code.
	SearchRoot string
	Package    string
	Size       int

	Tree     *jsast.Tree
	System   ModuleSystem
	Evidence Evidence
	Edges    []Edge
}

// WarningKind classifies a recoverable build failure.
type WarningKind string

const (
	WarningModuleNotFound WarningKind = "module-not-found"
	WarningSyntax         WarningKind = "syntax-error"
	WarningRead           WarningKind = "read-error"
	WarningResolve        WarningKind = "resolve-error"
)

// Warning is a failure that dropped a module or an edge without aborting
// the build.
type Warning struct {
	Kind      WarningKind
	Specifier string
	From      string
	Path      string
	Err       error
}

func (w Warning) String() string {
	switch {
	case w.Specifier != "":
		return fmt.Sprintf("%s: %q from %s: %v", w.Kind, w.Specifier, w.From, w.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", w.Kind, w.Path, w.Err)
	}
}

// Graph is the set of modules of one build, in ID order.
type Graph struct {
	Entry    string
	modules  []*Module
	byPath   map[string]*Module
	warnings []Warning
}

func newGraph(entry string) *Graph {
	return &Graph{Entry: entry, byPath: make(map[string]*Module)}
}

func (g *Graph) add(m *Module) {
	m.ID = len(g.modules)
	g.modules = append(g.modules, m)
	g.byPath[m.Path] = m
}

// Modules returns the modules ordered by ID.
func (g *Graph) Modules() []*Module {
	return g.modules
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.modules)
}

// ByID returns the module with the given ID.
func (g *Graph) ByID(id int) (*Module, bool) {
	if id < 0 || id >= len(g.modules) {
		return nil, false
	}
	return g.modules[id], true
}

// ByPath returns the module for a resolved path.
func (g *Graph) ByPath(path string) (*Module, bool) {
	m, ok := g.byPath[path]
	return m, ok
}

// HasESM reports whether any module was written as an ES module.
func (g *Graph) HasESM() bool {
	for _, m := range g.modules {
		if m.System == ESM {
			return true
		}
	}
	return false
}

// Warnings returns recoverable failures in discovery order.
func (g *Graph) Warnings() []Warning {
	return g.warnings
}
