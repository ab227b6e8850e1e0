package rewrite

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/jsbundle/internal/graph"
	"github.com/fluxbase-eu/jsbundle/internal/jsast"
	"github.com/fluxbase-eu/jsbundle/internal/normalize"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

func setup(t *testing.T, files map[string]string) (*graph.Graph, *resolver.Resolver) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	res, err := resolver.New(fs, resolver.Options{Externals: []string{"react"}})
	require.NoError(t, err)
	g, err := graph.NewBuilder(fs, jsast.NewParser(), res).Build(context.Background(), "/p/main.js")
	require.NoError(t, err)
	normalize.Graph(g)
	return g, res
}

func TestGraph_RewritesSpecifiersToIDs(t *testing.T) {
	g, res := setup(t, map[string]string{
		"/p/main.js": "const a = require('./a');\nconst again = require('./a.js');\nconst fs = require('fs');\nconst r = require('react');\n",
		"/p/a.js":    "module.exports = 1;\n",
	})
	factories := Graph(g, res)
	require.Len(t, factories, 2)

	assert.Equal(t, 0, factories[0].ID)
	assert.Equal(t, "/p/main.js", factories[0].Path)
	assert.Equal(t,
		"function (module, exports, require) {\n"+
			"const a = require(1);\n"+
			"const again = require(1);\n"+
			"const fs = require(\"fs\");\n"+
			"const r = require(\"react\");\n"+
			"}", factories[0].Code)
	assert.Empty(t, factories[0].Unresolved)

	assert.Equal(t, "function (module, exports, require) {\nmodule.exports = 1;\n}", factories[1].Code)
}

func TestGraph_UnresolvedGetsSentinel(t *testing.T) {
	g, res := setup(t, map[string]string{
		"/p/main.js": "const ok = require('./ok');\nif (flag) require('./missing');\nrequire('./broken');\n",
		"/p/ok.js":   "",
		"/p/broken.js": "const = ;\n",
	})
	factories := Graph(g, res)
	require.Len(t, factories, 2)
	assert.Contains(t, factories[0].Code, "const ok = require(1);")
	assert.Contains(t, factories[0].Code, "if (flag) require(-1, \"./missing\");")
	assert.Contains(t, factories[0].Code, "require(-1, \"./broken\");")
	assert.Equal(t, []string{"./missing", "./broken"}, factories[0].Unresolved)
}

func TestGraph_LoweredImportsUseIDs(t *testing.T) {
	g, res := setup(t, map[string]string{
		"/p/main.js": "import x from './cjs';\nimport { y } from './esm';\nexport default x + y;\n",
		"/p/cjs.js":  "module.exports = 42;\n",
		"/p/esm.js":  "export const y = 1;\n",
	})
	factories := Graph(g, res)
	require.Len(t, factories, 3)

	assert.Contains(t, factories[0].Code, "var x = __importDefault(require(1)).default;")
	assert.Contains(t, factories[0].Code, "var y = __import0.y;")
	assert.Contains(t, factories[0].Code, "var __import0 = require(2);")
	assert.Contains(t, factories[0].Code, "exports.default = x + y;")
}

func TestGraph_PackageSearchRoot(t *testing.T) {
	g, res := setup(t, map[string]string{
		"/p/main.js":                              "require('pkg');\n",
		"/p/node_modules/pkg/index.js":            "require('./lib');\nrequire('dep');\n",
		"/p/node_modules/pkg/lib.js":              "",
		"/p/node_modules/pkg/node_modules/dep/index.js": "",
	})
	factories := Graph(g, res)
	require.Len(t, factories, 4)
	assert.Contains(t, factories[1].Code, "require(2);\nrequire(3);")
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "function (module, exports, require) {\nx();\n}", Wrap("x();\n\n"))
}
