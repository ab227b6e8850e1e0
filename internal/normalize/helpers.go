package normalize

// Interop helpers referenced by lowered modules. The assembler defines them
// once, in scope of every module factory.
const (
	MarkESModule  = "__markESModule"
	ImportDefault = "__importDefault"
	ImportStar    = "__importStar"
	ExportStar    = "__exportStar"
)

// Helpers is the JavaScript source defining the interop helpers.
//
// A module marked with __esModule is taken as-is; anything else is wrapped
// so that its whole exports value becomes the default export.
const Helpers = `var __hasOwn = Object.prototype.hasOwnProperty;
var ` + MarkESModule + ` = function (exports) {
  Object.defineProperty(exports, "__esModule", { value: true });
};
var ` + ImportDefault + ` = function (mod) {
  return mod && mod.__esModule ? mod : { default: mod };
};
var ` + ImportStar + ` = function (mod) {
  if (mod && mod.__esModule) return mod;
  var ns = {};
  if ((typeof mod === "object" && mod !== null) || typeof mod === "function") {
    for (var key in mod) if (__hasOwn.call(mod, key)) ns[key] = mod[key];
  }
  ns.default = mod;
  return ns;
};
var ` + ExportStar + ` = function (target, mod) {
  for (var key in mod) {
    if (key !== "default" && !__hasOwn.call(target, key)) target[key] = mod[key];
  }
  return target;
};
`
