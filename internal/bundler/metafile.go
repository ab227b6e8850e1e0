package bundler

import (
	"github.com/fluxbase-eu/jsbundle/internal/graph"
)

// Metafile describes the inputs and outputs of a build. The layout follows
// esbuild's metafile JSON so existing analysis tools can read it.
type Metafile struct {
	BuildID string                    `json:"buildId"`
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"` // "cjs" or "esm"
}

// MetafileImport represents an import in the metafile
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput represents an output file in the metafile
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
}

// InputContrib represents the contribution of an input to an output
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// Metafile describes r as if it were written to outFile.
func (r *Result) Metafile(outFile string) *Metafile {
	meta := &Metafile{
		BuildID: r.BuildID,
		Inputs:  make(map[string]MetafileInput, len(r.Modules)),
		Outputs: make(map[string]MetafileOutput, 1),
	}

	byPath := make(map[string]string, len(r.Modules))
	for _, m := range r.Modules {
		byPath[m.Path] = m.RelPath
	}

	output := MetafileOutput{
		Bytes:   len(r.Code),
		Inputs:  make(map[string]InputContrib, len(r.Modules)),
		Imports: []MetafileImport{},
		Exports: []string{},
	}

	for _, m := range r.Modules {
		kind := "require-call"
		if m.System == graph.ESM {
			kind = "import-statement"
		}
		imports := make([]MetafileImport, 0, len(m.Edges))
		for _, e := range m.Edges {
			switch {
			case e.External:
				imports = append(imports, MetafileImport{Path: e.Specifier, Kind: kind, External: true})
			case e.Path != "":
				imports = append(imports, MetafileImport{Path: byPath[e.Path], Kind: kind, Original: e.Specifier})
			}
		}
		meta.Inputs[m.RelPath] = MetafileInput{
			Bytes:   m.Bytes,
			Imports: imports,
			Format:  m.System.String(),
		}
		output.Inputs[m.RelPath] = InputContrib{BytesInOutput: m.BytesInOutput}
		if m.ID == 0 {
			output.EntryPoint = m.RelPath
		}
	}

	for _, ext := range r.Externals {
		output.Imports = append(output.Imports, MetafileImport{Path: ext, Kind: "require-call", External: true})
	}

	meta.Outputs[outFile] = output
	return meta
}
