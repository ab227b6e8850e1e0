package graph

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/jsbundle/internal/jsast"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

// ErrEntryUnreadable is returned when the entry file cannot be read or
// parsed. It is the only failure that aborts a build.
var ErrEntryUnreadable = errors.New("entry module unreadable")

// Builder walks the dependency graph of an entry file.
type Builder struct {
	fs       afero.Fs
	parser   *jsast.Parser
	resolver *resolver.Resolver
}

// NewBuilder creates a graph builder. The resolver carries per-build caches,
// so a Builder should not be shared between concurrent builds.
func NewBuilder(fs afero.Fs, parser *jsast.Parser, res *resolver.Resolver) *Builder {
	return &Builder{fs: fs, parser: parser, resolver: res}
}

// walk holds the state of one Build call.
type walk struct {
	ctx     context.Context
	b       *Builder
	graph   *Graph
	visited map[string]struct{}
}

// Build discovers every module reachable from entry. Modules get IDs in
// depth-first, source-order discovery order with the entry at 0.
func (b *Builder) Build(ctx context.Context, entry string) (*Graph, error) {
	path, err := b.entryPath(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntryUnreadable, err)
	}

	w := &walk{
		ctx:     ctx,
		b:       b,
		graph:   newGraph(path),
		visited: make(map[string]struct{}),
	}

	w.visited[path] = struct{}{}
	m, err := w.load(path, resolver.Resolution{Path: path, SearchRoot: filepath.Dir(path)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEntryUnreadable, err)
	}
	if err := w.expand(m); err != nil {
		return nil, err
	}

	log.Debug().
		Str("entry", path).
		Int("modules", w.graph.Len()).
		Int("warnings", len(w.graph.warnings)).
		Msg("Dependency graph built")

	return w.graph, nil
}

// entryPath canonicalizes the entry, applying filename inference when the
// path does not name a file.
func (b *Builder) entryPath(entry string) (string, error) {
	path, err := filepath.Abs(entry)
	if err != nil {
		return "", err
	}
	if info, err := b.fs.Stat(path); err == nil && !info.IsDir() {
		return path, nil
	}
	res, err := b.resolver.Resolve("./"+filepath.Base(path), resolver.Context{
		FromPath:   path,
		SearchRoot: filepath.Dir(path),
	})
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// visit adds the module at res.Path unless it was already seen. Read and
// parse failures drop the module with a warning.
func (w *walk) visit(res resolver.Resolution) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if _, seen := w.visited[res.Path]; seen {
		return nil
	}
	w.visited[res.Path] = struct{}{}

	m, err := w.load(res.Path, res)
	if err != nil {
		kind := WarningRead
		if errors.Is(err, jsast.ErrSyntax) {
			kind = WarningSyntax
		}
		w.warn(Warning{Kind: kind, Path: res.Path, Err: err})
		return nil
	}
	return w.expand(m)
}

func (w *walk) load(path string, res resolver.Resolution) (*Module, error) {
	src, err := afero.ReadFile(w.b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	tree, err := w.b.parser.Parse(w.ctx, path, src)
	if err != nil {
		return nil, err
	}

	system, evidence := Classify(tree)
	m := &Module{
		Path:       path,
		SearchRoot: res.SearchRoot,
		Package:    res.Package,
		Size:       len(src),
		Tree:       tree,
		System:     system,
		Evidence:   evidence,
	}
	w.graph.add(m)

	log.Debug().
		Int("id", m.ID).
		Str("path", path).
		Str("system", system.String()).
		Msg("Module discovered")

	return m, nil
}

// expand resolves the dependencies of m in source order and recurses into
// each before moving on to the next.
func (w *walk) expand(m *Module) error {
	for _, spec := range Specifiers(m.Tree) {
		edge := Edge{Specifier: spec}
		res, err := w.b.resolver.Resolve(spec, resolver.Context{FromPath: m.Path, SearchRoot: m.SearchRoot})
		switch {
		case err != nil:
			kind := WarningResolve
			if errors.Is(err, resolver.ErrModuleNotFound) {
				kind = WarningModuleNotFound
			}
			w.warn(Warning{Kind: kind, Specifier: spec, From: m.Path, Err: err})
			m.Edges = append(m.Edges, edge)
			continue
		case res.External:
			edge.External = true
			m.Edges = append(m.Edges, edge)
			continue
		}

		edge.Path = res.Path
		m.Edges = append(m.Edges, edge)
		if err := w.visit(res); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) warn(warning Warning) {
	w.graph.warnings = append(w.graph.warnings, warning)
	log.Warn().
		Str("kind", string(warning.Kind)).
		Str("specifier", warning.Specifier).
		Str("from", warning.From).
		Str("path", warning.Path).
		Err(warning.Err).
		Msg("Module skipped")
}

// Specifiers lists the dependency specifiers of a tree in source order:
// import sources, re-export sources, and require arguments.
func Specifiers(t *jsast.Tree) []string {
	var specs []string
	jsast.Visit(t, jsast.Handlers{
		jsast.KindRequire: func(n jsast.Node) {
			specs = append(specs, n.(*jsast.RequireCall).Specifier)
		},
		jsast.KindImport: func(n jsast.Node) {
			specs = append(specs, n.(*jsast.ImportDecl).Source)
		},
		jsast.KindExport: func(n jsast.Node) {
			if src := n.(*jsast.ExportDecl).Source; src != "" {
				specs = append(specs, src)
			}
		},
	})
	return specs
}

// Classify decides the module system of a tree. Any import or export
// statement makes it ESM; otherwise it is CommonJS, with the evidence
// recording whether that was observed or assumed.
func Classify(t *jsast.Tree) (ModuleSystem, Evidence) {
	var imports, exports, requires, assigns bool
	jsast.Visit(t, jsast.Handlers{
		jsast.KindImport:       func(jsast.Node) { imports = true },
		jsast.KindExport:       func(jsast.Node) { exports = true },
		jsast.KindRequire:      func(jsast.Node) { requires = true },
		jsast.KindExportAssign: func(jsast.Node) { assigns = true },
	})
	switch {
	case imports:
		return ESM, EvidenceImport
	case exports:
		return ESM, EvidenceExport
	case requires:
		return CJS, EvidenceRequire
	case assigns:
		return CJS, EvidenceExportsAssignment
	default:
		return CJS, EvidenceDefault
	}
}
