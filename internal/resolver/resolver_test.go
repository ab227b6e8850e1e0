package resolver

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return fs
}

func newResolver(t *testing.T, fs afero.Fs, opts Options) *Resolver {
	t.Helper()
	r, err := New(fs, opts)
	require.NoError(t, err)
	return r
}

func TestResolve_Relative(t *testing.T) {
	fs := newFixture(t, map[string]string{
		"/p/a.js":           "",
		"/p/x.js":           "",
		"/p/dir/index.js":   "",
		"/p/data.json":      "",
		"/p/lib/util.js":    "",
		"/p/index.js":       "",
		"/p/both.js":        "",
		"/p/both/index.js":  "",
		"/p/name.v2.js":     "",
		"/p/sub/helpers.js": "",
	})
	r := newResolver(t, fs, Options{})
	ctx := Context{FromPath: "/p/a.js", SearchRoot: "/p"}

	tests := []struct {
		name      string
		specifier string
		from      string
		want      string
	}{
		{name: "inferred extension", specifier: "./x", want: "/p/x.js"},
		{name: "directory index", specifier: "./dir", want: "/p/dir/index.js"},
		{name: "explicit extension", specifier: "./data.json", want: "/p/data.json"},
		{name: "nested path", specifier: "./lib/util", want: "/p/lib/util.js"},
		{name: "dot means index", specifier: ".", want: "/p/index.js"},
		{name: "file wins over directory", specifier: "./both", want: "/p/both.js"},
		{name: "dotted name falls back to js", specifier: "./name.v2", want: "/p/name.v2.js"},
		{name: "parent directory", specifier: "../a", from: "/p/sub/helpers.js", want: "/p/a.js"},
		{name: "absolute path", specifier: "/p/x.js", want: "/p/x.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ctx
			if tt.from != "" {
				c.FromPath = tt.from
			}
			res, err := r.Resolve(tt.specifier, c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Path)
			assert.Equal(t, "/p", res.SearchRoot)
			assert.False(t, res.External)
		})
	}
}

func TestResolve_Packages(t *testing.T) {
	fs := newFixture(t, map[string]string{
		"/p/a.js":                                   "",
		"/p/node_modules/left-pad/package.json":     `{"main": "pad.js"}`,
		"/p/node_modules/left-pad/pad.js":           "",
		"/p/node_modules/no-main/package.json":      `{"name": "no-main"}`,
		"/p/node_modules/no-main/index.js":          "",
		"/p/node_modules/bare/index.js":             "",
		"/p/node_modules/dotmain/package.json":      `{"main": "."}`,
		"/p/node_modules/dotmain/index.js":          "",
		"/p/node_modules/libdir/package.json":       `{"main": "lib"}`,
		"/p/node_modules/libdir/lib/index.js":       "",
		"/p/node_modules/lodash/package.json":       `{"main": "lodash.js"}`,
		"/p/node_modules/lodash/lodash.js":          "",
		"/p/node_modules/lodash/map.js":             "",
		"/p/node_modules/lodash/fp/index.js":        "",
		"/p/node_modules/@scope/pkg/package.json":   `{"main": "./dist/main.js"}`,
		"/p/node_modules/@scope/pkg/dist/main.js":   "",
		"/p/node_modules/@scope/pkg/extra/thing.js": "",
		"/p/node_modules/stale/package.json":        `{"main": "gone.js"}`,
		"/p/node_modules/stale/index.js":            "",
	})
	r := newResolver(t, fs, Options{})
	ctx := Context{FromPath: "/p/a.js", SearchRoot: "/p"}

	tests := []struct {
		name       string
		specifier  string
		want       string
		searchRoot string
		pkg        string
	}{
		{name: "main field", specifier: "left-pad", want: "/p/node_modules/left-pad/pad.js", searchRoot: "/p/node_modules/left-pad", pkg: "left-pad"},
		{name: "manifest without main", specifier: "no-main", want: "/p/node_modules/no-main/index.js", searchRoot: "/p/node_modules/no-main", pkg: "no-main"},
		{name: "missing manifest", specifier: "bare", want: "/p/node_modules/bare/index.js", searchRoot: "/p/node_modules/bare", pkg: "bare"},
		{name: "dot main", specifier: "dotmain", want: "/p/node_modules/dotmain/index.js", searchRoot: "/p/node_modules/dotmain", pkg: "dotmain"},
		{name: "main directory", specifier: "libdir", want: "/p/node_modules/libdir/lib/index.js", searchRoot: "/p/node_modules/libdir", pkg: "libdir"},
		{name: "subpath skips manifest", specifier: "lodash/map", want: "/p/node_modules/lodash/map.js", searchRoot: "/p/node_modules/lodash", pkg: "lodash"},
		{name: "subpath directory", specifier: "lodash/fp", want: "/p/node_modules/lodash/fp/index.js", searchRoot: "/p/node_modules/lodash", pkg: "lodash"},
		{name: "scoped main", specifier: "@scope/pkg", want: "/p/node_modules/@scope/pkg/dist/main.js", searchRoot: "/p/node_modules/@scope/pkg", pkg: "@scope/pkg"},
		{name: "scoped subpath", specifier: "@scope/pkg/extra/thing", want: "/p/node_modules/@scope/pkg/extra/thing.js", searchRoot: "/p/node_modules/@scope/pkg", pkg: "@scope/pkg"},
		{name: "missing main falls back to index", specifier: "stale", want: "/p/node_modules/stale/index.js", searchRoot: "/p/node_modules/stale", pkg: "stale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.specifier, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Path)
			assert.Equal(t, tt.searchRoot, res.SearchRoot)
			assert.Equal(t, tt.pkg, res.Package)
		})
	}
}

func TestResolve_NestedPackages(t *testing.T) {
	// app -> outer -> ./helper -> inner, where inner is only installed inside
	// outer and shared is only installed at the project root.
	fs := newFixture(t, map[string]string{
		"/app/main.js":                                           "",
		"/app/node_modules/outer/index.js":                       "",
		"/app/node_modules/outer/helper.js":                      "",
		"/app/node_modules/outer/node_modules/inner/index.js":    "",
		"/app/node_modules/shared/index.js":                      "",
		"/app/node_modules/inner/index.js":                       "",
		"/app/node_modules/outer/node_modules/inner/package.json": `{}`,
	})
	r := newResolver(t, fs, Options{})

	outer, err := r.Resolve("outer", Context{FromPath: "/app/main.js", SearchRoot: "/app"})
	require.NoError(t, err)
	assert.Equal(t, "/app/node_modules/outer/index.js", outer.Path)

	helper, err := r.Resolve("./helper", Context{FromPath: outer.Path, SearchRoot: outer.SearchRoot})
	require.NoError(t, err)
	assert.Equal(t, "/app/node_modules/outer/helper.js", helper.Path)
	assert.Equal(t, "/app/node_modules/outer", helper.SearchRoot)

	inner, err := r.Resolve("inner", Context{FromPath: helper.Path, SearchRoot: helper.SearchRoot})
	require.NoError(t, err)
	assert.Equal(t, "/app/node_modules/outer/node_modules/inner/index.js", inner.Path)

	shared, err := r.Resolve("shared", Context{FromPath: helper.Path, SearchRoot: helper.SearchRoot})
	require.NoError(t, err)
	assert.Equal(t, "/app/node_modules/shared/index.js", shared.Path)
}

func TestResolve_SearchRootOutsideImporterTree(t *testing.T) {
	fs := newFixture(t, map[string]string{
		"/app/node_modules/pad/index.js": "",
		"/tmp/gen/stub.js":               "",
	})
	r := newResolver(t, fs, Options{})

	res, err := r.Resolve("pad", Context{FromPath: "/tmp/gen/stub.js", SearchRoot: "/app"})
	require.NoError(t, err)
	assert.Equal(t, "/app/node_modules/pad/index.js", res.Path)
	assert.Equal(t, "/app/node_modules/pad", res.SearchRoot)

	_, err = r.Resolve("pad", Context{FromPath: "/tmp/gen/stub.js"})
	var notFound *ModuleNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"/tmp/gen/node_modules/pad", "/tmp/node_modules/pad", "/node_modules/pad"}, notFound.Tried)
}

func TestSearchDirs(t *testing.T) {
	assert.Equal(t, []string{"/p/src", "/p", "/"}, searchDirs(Context{FromPath: "/p/src/a.js", SearchRoot: "/p"}))
	assert.Equal(t, []string{"/lib", "/p/src", "/p", "/"}, searchDirs(Context{FromPath: "/p/src/a.js", SearchRoot: "/lib/"}))
	assert.Equal(t, []string{"/p/src", "/p", "/"}, searchDirs(Context{FromPath: "/p/src/a.js"}))
}

func TestResolve_MainFields(t *testing.T) {
	fs := newFixture(t, map[string]string{
		"/p/a.js":                       "",
		"/p/node_modules/m/package.json": `{"main": "cjs.js", "browser": "browser.js", "module": {"bad": true}}`,
		"/p/node_modules/m/cjs.js":       "",
		"/p/node_modules/m/browser.js":   "",
	})
	ctx := Context{FromPath: "/p/a.js"}

	res, err := newResolver(t, fs, Options{MainFields: []string{"browser", "main"}}).Resolve("m", ctx)
	require.NoError(t, err)
	assert.Equal(t, "/p/node_modules/m/browser.js", res.Path)

	res, err = newResolver(t, fs, Options{MainFields: []string{"module", "main"}}).Resolve("m", ctx)
	require.NoError(t, err)
	assert.Equal(t, "/p/node_modules/m/cjs.js", res.Path)
}

func TestResolve_External(t *testing.T) {
	fs := newFixture(t, map[string]string{
		"/p/a.js":                       "",
		"/p/node_modules/events/index.js": "",
	})
	r := newResolver(t, fs, Options{Externals: []string{"react", "@aws-sdk/*"}})
	ctx := Context{FromPath: "/p/a.js", SearchRoot: "/p"}

	for _, spec := range []string{"fs", "node:fs", "fs/promises", "react", "react/jsx-runtime", "@aws-sdk/client-s3"} {
		t.Run(spec, func(t *testing.T) {
			res, err := r.Resolve(spec, ctx)
			require.NoError(t, err)
			assert.True(t, res.External)
			assert.Empty(t, res.Path)
		})
	}

	t.Run("installed polyfill wins over builtin", func(t *testing.T) {
		res, err := r.Resolve("events", ctx)
		require.NoError(t, err)
		assert.False(t, res.External)
		assert.Equal(t, "/p/node_modules/events/index.js", res.Path)
	})
}

func TestResolve_NotFound(t *testing.T) {
	fs := newFixture(t, map[string]string{"/p/a.js": ""})
	r := newResolver(t, fs, Options{})
	ctx := Context{FromPath: "/p/a.js"}

	_, err := r.Resolve("./missing", ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModuleNotFound))

	var notFound *ModuleNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "./missing", notFound.Specifier)
	assert.Equal(t, "/p/a.js", notFound.FromPath)
	assert.Equal(t, []string{"/p/missing.js", "/p/missing/index.js"}, notFound.Tried)

	_, err = r.Resolve("nope", ctx)
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"/p/node_modules/nope", "/node_modules/nope"}, notFound.Tried)
	assert.Contains(t, err.Error(), `cannot find module "nope" from /p/a.js`)
}

func TestResolve_InvalidManifest(t *testing.T) {
	fs := newFixture(t, map[string]string{
		"/p/a.js":                          "",
		"/p/node_modules/broken/package.json": `{"main": `,
	})
	r := newResolver(t, fs, Options{})
	_, err := r.Resolve("broken", Context{FromPath: "/p/a.js"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid package.json")
	assert.False(t, errors.Is(err, ErrModuleNotFound))
}

func TestInferFilename(t *testing.T) {
	assert.Equal(t, "index.js", InferFilename(""))
	assert.Equal(t, "index.js", InferFilename("."))
	assert.Equal(t, "lib.js", InferFilename("lib"))
	assert.Equal(t, "main.cjs", InferFilename("main.cjs"))
}

func TestSplitPackage(t *testing.T) {
	tests := []struct {
		specifier string
		name      string
		subpath   string
	}{
		{"lodash", "lodash", ""},
		{"lodash/map", "lodash", "map"},
		{"lodash/fp/map", "lodash", "fp/map"},
		{"@scope/pkg", "@scope/pkg", ""},
		{"@scope/pkg/a/b", "@scope/pkg", "a/b"},
	}
	for _, tt := range tests {
		name, subpath := SplitPackage(tt.specifier)
		assert.Equal(t, tt.name, name, tt.specifier)
		assert.Equal(t, tt.subpath, subpath, tt.specifier)
	}
}

func TestIsBuiltin(t *testing.T) {
	assert.True(t, IsBuiltin("path"))
	assert.True(t, IsBuiltin("node:test"))
	assert.True(t, IsBuiltin("fs/promises"))
	assert.False(t, IsBuiltin("left-pad"))
	assert.False(t, IsBuiltin("./fs"))
}

func TestBuiltins(t *testing.T) {
	names := Builtins()
	assert.Contains(t, names, "fs")
	assert.Contains(t, names, "zlib")
	assert.IsIncreasing(t, names)
	for _, name := range names {
		assert.True(t, IsBuiltin(name), name)
	}
}
