// Package assemble renders module factories and a CommonJS loader into a
// single self-contained program.
package assemble

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fluxbase-eu/jsbundle/internal/normalize"
	"github.com/fluxbase-eu/jsbundle/internal/rewrite"
)

// EntryID is the ID of the module the bootstrap requires.
const EntryID = 0

// Options controls the assembled output.
type Options struct {
	// Root is the directory factory comments are made relative to.
	Root string
	// Interop emits the ESM interop helpers.
	Interop bool
}

const prelude = `(function () {
var __hostRequire = typeof require === "function" ? require : null;
`

// loader caches a module before running its factory, so a require cycle
// returns the exports object filled in so far.
const loader = `var __cache = {};
function __notFound(request) {
  var err = new Error("Cannot find module '" + request + "'");
  err.code = "MODULE_NOT_FOUND";
  return err;
}
function __require(id, request) {
  if (typeof id === "string") {
    if (__hostRequire) return __hostRequire(id);
    throw __notFound(id);
  }
  var cached = __cache[id];
  if (cached) return cached.exports;
  var factory = __modules[id];
  if (!factory) throw __notFound(request === undefined ? id : request);
  var module = __cache[id] = { id: id, exports: {}, loaded: false };
  factory.call(module.exports, module, module.exports, __require);
  module.loaded = true;
  return module.exports;
}
`

// Assemble renders the program. factories must be ordered by ID.
func Assemble(factories []rewrite.Factory, opts Options) string {
	var b strings.Builder
	b.WriteString(prelude)
	if opts.Interop {
		b.WriteString(normalize.Helpers)
	}

	b.WriteString("var __modules = {\n")
	for i, f := range factories {
		b.WriteString("// ")
		b.WriteString(displayPath(opts.Root, f.Path))
		b.WriteByte('\n')
		b.WriteString(strconv.Itoa(f.ID))
		b.WriteString(": ")
		b.WriteString(f.Code)
		if i < len(factories)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("};\n")

	b.WriteString(loader)
	b.WriteString("__require(" + strconv.Itoa(EntryID) + ");\n")
	b.WriteString("})();\n")
	return b.String()
}

func displayPath(root, path string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			path = rel
		}
	}
	return strings.ReplaceAll(filepath.ToSlash(path), "\n", " ")
}
