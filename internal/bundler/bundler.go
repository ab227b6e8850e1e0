// Package bundler runs the bundling pipeline: resolve, graph, normalize,
// rewrite, assemble and optionally minify.
package bundler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxbase-eu/jsbundle/internal/assemble"
	"github.com/fluxbase-eu/jsbundle/internal/graph"
	"github.com/fluxbase-eu/jsbundle/internal/jsast"
	"github.com/fluxbase-eu/jsbundle/internal/minify"
	"github.com/fluxbase-eu/jsbundle/internal/normalize"
	"github.com/fluxbase-eu/jsbundle/internal/observability"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
	"github.com/fluxbase-eu/jsbundle/internal/rewrite"
	"github.com/fluxbase-eu/jsbundle/internal/storage"
)

// ErrEntryUnreadable is returned when the entry file cannot be read or
// parsed.
var ErrEntryUnreadable = graph.ErrEntryUnreadable

// Options configures one build.
type Options struct {
	Entry string
	// Externals are left to the host require at run time. A trailing "*"
	// matches a prefix.
	Externals  []string
	MainFields []string
	Minify     bool
	Metafile   bool
}

// Bundler builds bundles. It is safe for concurrent use; every Bundle call
// gets its own resolver and graph.
type Bundler struct {
	fs      afero.Fs
	parser  *jsast.Parser
	store   storage.Store
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithStore sets the artifact store used by Write.
func WithStore(store storage.Store) Option {
	return func(b *Bundler) { b.store = store }
}

// WithMetrics records build metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bundler) { b.metrics = m }
}

// WithTracer records a span per pipeline stage.
func WithTracer(t *observability.Tracer) Option {
	return func(b *Bundler) { b.tracer = t }
}

// New creates a Bundler reading sources from fsys.
func New(fsys afero.Fs, opts ...Option) *Bundler {
	b := &Bundler{fs: fsys, parser: jsast.NewParser()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ModuleInfo describes one bundled module.
type ModuleInfo struct {
	ID   int
	Path string
	// RelPath is Path relative to the entry directory, slash separated.
	RelPath       string
	System        graph.ModuleSystem
	Evidence      graph.Evidence
	Package       string
	Bytes         int
	BytesInOutput int
	Edges         []graph.Edge
	Unresolved    []string
}

// Result is the outcome of one build.
type Result struct {
	// BuildID identifies the build in logs and metafiles. It never
	// appears in the bundle text.
	BuildID string
	Entry   string
	Root    string

	Code     string
	Minified string
	// MinifyErr is set when minification was requested and failed. Code
	// is still valid.
	MinifyErr error

	Modules   []ModuleInfo
	Externals []string
	Warnings  []graph.Warning
	Lowered   int
	Duration  time.Duration

	metafile bool
}

// HasESM reports whether any module was lowered from ES module syntax.
func (r *Result) HasESM() bool {
	return r.Lowered > 0
}

// Bundle builds the bundle for opts.Entry. Only an unreadable entry fails
// the build; every other problem becomes a warning on the result.
func (b *Bundler) Bundle(ctx context.Context, opts Options) (result *Result, err error) {
	start := time.Now()
	buildID := uuid.NewString()

	ctx, span := b.tracer.StartBuild(ctx, buildID, opts.Entry)
	defer func() {
		observability.EndSpan(span, err)
		b.metrics.RecordBuild(time.Since(start), err)
	}()

	res, err := resolver.New(b.fs, resolver.Options{
		Externals:  opts.Externals,
		MainFields: opts.MainFields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	var g *graph.Graph
	err = b.stage(ctx, "graph", func(ctx context.Context) error {
		var buildErr error
		g, buildErr = graph.NewBuilder(b.fs, b.parser, res).Build(ctx, opts.Entry)
		if buildErr == nil {
			observability.SetSpanAttributes(ctx,
				attribute.Int("bundle.modules", g.Len()),
				attribute.Int("bundle.warnings", len(g.Warnings())),
			)
		}
		return buildErr
	})
	if err != nil {
		return nil, err
	}

	result = &Result{
		BuildID:  buildID,
		Entry:    g.Entry,
		Root:     filepath.Dir(g.Entry),
		Warnings: g.Warnings(),
		metafile: opts.Metafile,
	}

	_ = b.stage(ctx, "normalize", func(context.Context) error {
		result.Lowered = normalize.Graph(g)
		return nil
	})

	var factories []rewrite.Factory
	_ = b.stage(ctx, "rewrite", func(context.Context) error {
		factories = rewrite.Graph(g, res)
		return nil
	})

	_ = b.stage(ctx, "assemble", func(context.Context) error {
		result.Code = assemble.Assemble(factories, assemble.Options{
			Root:    result.Root,
			Interop: result.Lowered > 0,
		})
		return nil
	})
	b.metrics.SetBundleSize("plain", len(result.Code))

	if opts.Minify {
		minErr := b.stage(ctx, "minify", func(context.Context) error {
			var err error
			result.Minified, err = minify.Minify(result.Code, minify.Options{})
			return err
		})
		if minErr != nil {
			result.MinifyErr = minErr
			observability.AddSpanEvent(ctx, "minify.failed", attribute.String("error", minErr.Error()))
			log.Warn().Err(minErr).Str("entry", result.Entry).Msg("Minification failed, keeping unminified bundle")
		} else {
			b.metrics.SetBundleSize("minified", len(result.Minified))
		}
	}

	result.Modules = moduleInfos(g, factories, result.Root)
	result.Externals = externals(g)
	for _, m := range g.Modules() {
		b.metrics.RecordModule(m.System.String())
	}
	for _, w := range result.Warnings {
		b.metrics.RecordWarning(string(w.Kind))
	}
	result.Duration = time.Since(start)

	log.Info().
		Str("build_id", buildID).
		Str("trace_id", observability.ExtractTraceID(ctx)).
		Str("entry", result.Entry).
		Int("modules", len(result.Modules)).
		Int("warnings", len(result.Warnings)).
		Int("bytes", len(result.Code)).
		Dur("duration", result.Duration).
		Msg("Bundle built")

	return result, nil
}

// stage runs fn inside a span and records its duration.
func (b *Bundler) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := b.tracer.StartStage(ctx, name)
	err := fn(ctx)
	observability.EndSpan(span, err)
	b.metrics.RecordStage(name, time.Since(start))
	return err
}

func moduleInfos(g *graph.Graph, factories []rewrite.Factory, root string) []ModuleInfo {
	infos := make([]ModuleInfo, 0, g.Len())
	for i, m := range g.Modules() {
		info := ModuleInfo{
			ID:       m.ID,
			Path:     m.Path,
			RelPath:  relPath(root, m.Path),
			System:   m.System,
			Evidence: m.Evidence,
			Package:  m.Package,
			Bytes:    m.Size,
			Edges:    m.Edges,
		}
		if i < len(factories) {
			info.BytesInOutput = len(factories[i].Code)
			info.Unresolved = factories[i].Unresolved
		}
		infos = append(infos, info)
	}
	return infos
}

func externals(g *graph.Graph) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range g.Modules() {
		for _, e := range m.Edges {
			if !e.External {
				continue
			}
			if _, ok := seen[e.Specifier]; ok {
				continue
			}
			seen[e.Specifier] = struct{}{}
			out = append(out, e.Specifier)
		}
	}
	sort.Strings(out)
	return out
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
