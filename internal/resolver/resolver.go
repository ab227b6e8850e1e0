// Package resolver maps import specifiers to files using Node's module
// resolution rules: relative paths with filename inference, and bare package
// specifiers looked up in node_modules directories.
package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

const (
	defaultCacheSize = 256
	indexFile        = "index.js"
	defaultExt       = ".js"
)

// Context is the resolution state threaded through the graph walk.
type Context struct {
	// FromPath is the absolute path of the importing module.
	FromPath string
	// SearchRoot is the package directory the importer belongs to, or the
	// entry directory for first-party code. Package lookup walks the
	// ancestors of FromPath; SearchRoot is searched first when it is not one
	// of them.
	SearchRoot string
}

// Resolution is the result of resolving one specifier.
type Resolution struct {
	Path string
	// SearchRoot is the context the resolved module's own imports use.
	SearchRoot string
	// Package is the package name when resolution went through node_modules.
	Package string
	// External marks specifiers that are left to the host at run time.
	External bool
}

// Options configures a Resolver.
type Options struct {
	// Externals lists package names never bundled. A trailing "*" matches
	// any specifier with that prefix.
	Externals []string
	// MainFields lists package.json fields consulted in order.
	MainFields []string
	// CacheSize bounds the package.json cache.
	CacheSize int
}

// Resolver resolves specifiers against a file system. A Resolver caches
// package manifests and belongs to a single build.
type Resolver struct {
	fs         afero.Fs
	externals  []string
	mainFields []string
	manifests  *lru.Cache[string, manifest]
}

// New creates a resolver reading from fsys.
func New(fsys afero.Fs, opts Options) (*Resolver, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, manifest](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest cache: %w", err)
	}
	mainFields := opts.MainFields
	if len(mainFields) == 0 {
		mainFields = []string{"main"}
	}
	return &Resolver{
		fs:         fsys,
		externals:  opts.Externals,
		mainFields: mainFields,
		manifests:  cache,
	}, nil
}

// IsRelative reports whether specifier is resolved against the importing
// module's directory.
func IsRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// InferFilename applies filename inference to a main field or path segment:
// "." or "" becomes index.js, a name without extension gets ".js".
func InferFilename(name string) string {
	if name == "" || name == "." {
		return indexFile
	}
	if filepath.Ext(name) == "" {
		return name + defaultExt
	}
	return name
}

// Resolve maps specifier to a file as seen from ctx.FromPath.
func (r *Resolver) Resolve(specifier string, ctx Context) (Resolution, error) {
	if specifier == "" {
		return Resolution{}, &ModuleNotFoundError{Specifier: specifier, FromPath: ctx.FromPath}
	}

	if IsRelative(specifier) || filepath.IsAbs(specifier) {
		base := specifier
		if !filepath.IsAbs(base) {
			base = filepath.Join(filepath.Dir(ctx.FromPath), specifier)
		}
		dirOnly := specifier == "." || specifier == ".." || strings.HasSuffix(specifier, "/")
		path, tried := r.loadFile(base, dirOnly)
		if path == "" {
			return Resolution{}, &ModuleNotFoundError{Specifier: specifier, FromPath: ctx.FromPath, Tried: tried}
		}
		return Resolution{Path: path, SearchRoot: ctx.SearchRoot}, nil
	}

	if r.isExternal(specifier) {
		return Resolution{External: true, SearchRoot: ctx.SearchRoot}, nil
	}

	res, tried, err := r.resolvePackage(specifier, ctx)
	if err != nil {
		return Resolution{}, err
	}
	if res.Path != "" {
		return res, nil
	}
	if IsBuiltin(specifier) {
		return Resolution{External: true, SearchRoot: ctx.SearchRoot}, nil
	}
	return Resolution{}, &ModuleNotFoundError{Specifier: specifier, FromPath: ctx.FromPath, Tried: tried}
}

// resolvePackage looks the package up in the node_modules directory of every
// search directory, nearest first.
func (r *Resolver) resolvePackage(specifier string, ctx Context) (Resolution, []string, error) {
	name, subpath := SplitPackage(specifier)
	var tried []string
	for _, dir := range searchDirs(ctx) {
		pkgDir := filepath.Join(dir, "node_modules", name)
		if !r.isDir(pkgDir) {
			tried = append(tried, pkgDir)
			continue
		}

		var (
			path       string
			candidates []string
			err        error
		)
		if subpath != "" {
			path, candidates = r.loadFile(filepath.Join(pkgDir, subpath), strings.HasSuffix(subpath, "/"))
		} else {
			path, candidates, err = r.loadMain(pkgDir)
			if err != nil {
				return Resolution{}, nil, err
			}
		}
		tried = append(tried, candidates...)
		if path != "" {
			return Resolution{Path: path, SearchRoot: pkgDir, Package: name}, tried, nil
		}
	}
	return Resolution{}, tried, nil
}

// loadMain resolves a package directory through its manifest.
func (r *Resolver) loadMain(pkgDir string) (string, []string, error) {
	m, err := r.manifest(pkgDir)
	if err != nil {
		return "", nil, err
	}
	var tried []string
	for _, field := range r.mainFields {
		main := m.field(field)
		if main == "" {
			continue
		}
		path, candidates := r.loadFile(filepath.Join(pkgDir, main), main == "." || strings.HasSuffix(main, "/"))
		tried = append(tried, candidates...)
		if path != "" {
			return path, tried, nil
		}
	}
	index := filepath.Join(pkgDir, indexFile)
	tried = append(tried, index)
	if r.isFile(index) {
		return index, tried, nil
	}
	return "", tried, nil
}

// loadFile applies filename inference to base and returns the first
// candidate that exists.
func (r *Resolver) loadFile(base string, dirOnly bool) (string, []string) {
	var candidates []string
	switch {
	case dirOnly:
		candidates = []string{filepath.Join(base, indexFile)}
	case filepath.Ext(base) != "":
		candidates = []string{base, base + defaultExt, filepath.Join(base, indexFile)}
	default:
		candidates = []string{base + defaultExt, filepath.Join(base, indexFile)}
	}
	for i, c := range candidates {
		if r.isFile(c) {
			return c, candidates[:i+1]
		}
	}
	return "", candidates
}

func (r *Resolver) isExternal(specifier string) bool {
	name, _ := SplitPackage(specifier)
	for _, ext := range r.externals {
		if prefix, ok := strings.CutSuffix(ext, "*"); ok {
			if strings.HasPrefix(specifier, prefix) {
				return true
			}
			continue
		}
		if ext == specifier || ext == name {
			return true
		}
	}
	return false
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}

func (r *Resolver) isDir(path string) bool {
	ok, err := afero.IsDir(r.fs, path)
	return err == nil && ok
}

// SplitPackage splits a bare specifier into its package name and the
// package-relative subpath. Scoped names keep their scope.
func SplitPackage(specifier string) (name, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		name = parts[0] + "/" + parts[1]
		if len(parts) == 3 {
			subpath = parts[2]
		}
		return name, subpath
	}
	name, subpath, _ = strings.Cut(specifier, "/")
	return name, subpath
}

// searchDirs lists the directories whose node_modules are consulted for ctx.
func searchDirs(ctx Context) []string {
	dirs := ancestors(filepath.Dir(ctx.FromPath))
	if ctx.SearchRoot == "" {
		return dirs
	}
	root := filepath.Clean(ctx.SearchRoot)
	for _, dir := range dirs {
		if dir == root {
			return dirs
		}
	}
	return append([]string{root}, dirs...)
}

func ancestors(dir string) []string {
	var dirs []string
	for {
		if filepath.Base(dir) != "node_modules" {
			dirs = append(dirs, dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dirs
		}
		dir = parent
	}
}

type manifest map[string]json.RawMessage

func (m manifest) field(name string) string {
	raw, ok := m[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (r *Resolver) manifest(pkgDir string) (manifest, error) {
	if m, ok := r.manifests.Get(pkgDir); ok {
		return m, nil
	}
	data, err := afero.ReadFile(r.fs, filepath.Join(pkgDir, "package.json"))
	m := manifest{}
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read package.json in %s: %w", pkgDir, err)
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid package.json in %s: %w", pkgDir, err)
		}
	}
	r.manifests.Add(pkgDir, m)
	return m, nil
}
