// Package rewrite replaces require specifiers with module IDs and renders
// each module as a factory function.
package rewrite

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/jsbundle/internal/graph"
	"github.com/fluxbase-eu/jsbundle/internal/jsast"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

// Factory is the rendered form of one module.
type Factory struct {
	ID   int
	Path string
	Code string
	// Unresolved lists specifiers rewritten to the sentinel ID.
	Unresolved []string
}

// Graph rewrites every module of g and returns the factories ordered by ID.
func Graph(g *graph.Graph, r *resolver.Resolver) []Factory {
	factories := make([]Factory, 0, g.Len())
	for _, m := range g.Modules() {
		factories = append(factories, Module(g, r, m))
	}
	return factories
}

// Module resolves every require site of m again from m's own location and
// points it at the target's ID. Sites whose target is not in g get the
// sentinel ID and fail only when executed.
func Module(g *graph.Graph, r *resolver.Resolver, m *graph.Module) Factory {
	f := Factory{ID: m.ID, Path: m.Path}
	ctx := resolver.Context{FromPath: m.Path, SearchRoot: m.SearchRoot}

	for _, call := range jsast.RequireCalls(m.Tree) {
		call.Rewritten = true
		res, err := r.Resolve(call.Specifier, ctx)
		if err == nil && res.External {
			call.External = true
			continue
		}
		if err == nil {
			if target, ok := g.ByPath(res.Path); ok {
				call.ID = target.ID
				continue
			}
		}
		call.ID = jsast.SentinelID
		f.Unresolved = append(f.Unresolved, call.Specifier)
		log.Debug().
			Int("id", m.ID).
			Str("specifier", call.Specifier).
			Msg("Require site left unresolved")
	}

	f.Code = Wrap(jsast.Generate(m.Tree))
	return f
}

// Wrap places module code in the factory signature used by the loader.
func Wrap(code string) string {
	return "function (module, exports, require) {\n" + strings.TrimRight(code, "\n") + "\n}"
}
