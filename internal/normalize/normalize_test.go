package normalize

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/jsbundle/internal/graph"
	"github.com/fluxbase-eu/jsbundle/internal/jsast"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

const header = "\"use strict\";\n__markESModule(exports);\n"

func lower(t *testing.T, src string) string {
	t.Helper()
	tree, err := jsast.NewParser().Parse(context.Background(), "/p/m.js", []byte(src))
	require.NoError(t, err)
	Lower(tree)
	return jsast.Generate(tree)
}

func TestLower_DefaultImportAndExportConst(t *testing.T) {
	out := lower(t, "import x from './cjs';\nexport const y = x + 1;\n")
	assert.Equal(t, header+
		"var x = __importDefault(require(\"./cjs\")).default;\n"+
		"\n"+
		"const y = x + 1;\n"+
		"exports.y = y;\n", out)
}

func TestLower_ImportShapes(t *testing.T) {
	out := lower(t, strings.Join([]string{
		"import './side';",
		"import * as ns from './ns';",
		"import d, { a, b as c, default as e } from './m';",
		"",
	}, "\n"))
	assert.True(t, strings.HasPrefix(out, header+
		"require(\"./side\");\n"+
		"var ns = __importStar(require(\"./ns\"));\n"+
		"var __import0 = require(\"./m\");\n"+
		"var d = __importDefault(__import0).default, a = __import0.a, c = __import0.b, e = __importDefault(__import0).default;\n"), out)
	assert.NotContains(t, out, "import ")
}

func TestLower_DefaultExports(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains []string
	}{
		{
			name:     "expression",
			src:      "export default 40 + 2;\n",
			contains: []string{"exports.default = 40 + 2;\n"},
		},
		{
			name:     "anonymous function",
			src:      "export default function () { return 1; }\n",
			contains: []string{"exports.default = function () { return 1; };"},
		},
		{
			name:     "named class",
			src:      "export default class Widget {}\n",
			contains: []string{"class Widget {}\nexports.default = Widget;"},
		},
		{
			name:     "named function is hoisted",
			src:      "export default function main() {}\n",
			contains: []string{header + "exports.default = main;\n", "\nfunction main() {}\n"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := lower(t, tt.src)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.NotContains(t, out, "export default")
		})
	}
}

func TestLower_ExportClause(t *testing.T) {
	out := lower(t, "function f() {}\nlet count = 0;\nexport { f, count as total };\n")
	assert.Equal(t, header+
		"exports.f = f;\n"+
		"function f() {}\n"+
		"let count = 0;\n"+
		"\n"+
		"exports.total = count;\n", out)
}

func TestLower_ExportClauseBeforeDeclaration(t *testing.T) {
	out := lower(t, "export { late };\nconst late = 1;\n")
	assert.Equal(t, header+"\nconst late = 1;\nexports.late = late;\n", out)
}

func TestLower_ExportDeclarations(t *testing.T) {
	out := lower(t, "export function g() {}\nexport class K {}\nexport var a = 1, b = 2;\n")
	assert.Equal(t, header+
		"exports.g = g;\n"+
		"function g() {}\n"+
		"class K {}\n"+
		"exports.K = K;\n"+
		"var a = 1, b = 2;\n"+
		"exports.a = a;\n"+
		"exports.b = b;\n", out)
}

func TestLower_ReExportsInSourceOrder(t *testing.T) {
	out := lower(t, strings.Join([]string{
		"export * from './a';",
		"import b from './b';",
		"export { c as d, default as e } from './c';",
		"export * as ns from './n';",
		"export { b };",
		"",
	}, "\n"))
	assert.Equal(t, header+
		"__exportStar(exports, require(\"./a\"));\n"+
		"var b = __importDefault(require(\"./b\")).default;\n"+
		"var __import0 = require(\"./c\");\n"+
		"exports.d = __import0.c;\n"+
		"exports.e = __importDefault(__import0).default;\n"+
		"exports.ns = __importStar(require(\"./n\"));\n"+
		"exports.b = b;\n"+
		"\n\n\n\n\n", out)
}

func TestLower_TempNamesAvoidDeclarations(t *testing.T) {
	out := lower(t, "const __import0 = 1;\nimport { a, b } from './m';\n")
	assert.Contains(t, out, "var __import1 = require(\"./m\");\n")
}

func TestLower_KeepsRequireCalls(t *testing.T) {
	tree, err := jsast.NewParser().Parse(context.Background(), "/p/m.js",
		[]byte("import a from './a';\nexport const b = require('./b');\n"))
	require.NoError(t, err)
	Lower(tree)

	var specs []string
	for _, call := range jsast.RequireCalls(tree) {
		specs = append(specs, call.Specifier)
	}
	assert.Equal(t, []string{"./a", "./b"}, specs)
}

func TestGraph(t *testing.T) {
	build := func(files map[string]string) *graph.Graph {
		fs := afero.NewMemMapFs()
		for path, content := range files {
			require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
		}
		res, err := resolver.New(fs, resolver.Options{})
		require.NoError(t, err)
		g, err := graph.NewBuilder(fs, jsast.NewParser(), res).Build(context.Background(), "/p/main.js")
		require.NoError(t, err)
		return g
	}

	t.Run("cjs only graph is untouched", func(t *testing.T) {
		g := build(map[string]string{
			"/p/main.js": "const a = require('./a');\n",
			"/p/a.js":    "module.exports = 42;\n",
		})
		assert.Equal(t, 0, Graph(g))
		m, _ := g.ByID(0)
		assert.Equal(t, "const a = require('./a');\n", jsast.Generate(m.Tree))
	})

	t.Run("only esm modules are lowered", func(t *testing.T) {
		g := build(map[string]string{
			"/p/main.js": "import x from './cjs';\nconsole.log(x);\n",
			"/p/cjs.js":  "module.exports = 42;\n",
		})
		assert.Equal(t, 1, Graph(g))

		main, _ := g.ByID(0)
		assert.Contains(t, jsast.Generate(main.Tree), "var x = __importDefault(require(\"./cjs\")).default;")
		cjs, _ := g.ByID(1)
		assert.Equal(t, "module.exports = 42;\n", jsast.Generate(cjs.Tree))
	})
}
