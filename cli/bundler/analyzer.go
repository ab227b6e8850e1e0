// Package bundler renders size analyses of jsbundle builds.
package bundler

import (
	"fmt"
	"sort"

	"github.com/fluxbase-eu/jsbundle/internal/bundler"
)

// AnalysisResult contains the analyzed bundle information
type AnalysisResult struct {
	Name            string
	TotalBytes      int
	MinifiedBytes   int
	InputFiles      []FileAnalysis
	ExternalImports []string
	Warnings        []string
}

// FileAnalysis contains analysis for a single file
type FileAnalysis struct {
	Path          string
	Format        string
	Bytes         int
	BytesInOutput int
	Percentage    float64
	ImportCount   int
}

// Analyze breaks a build result down by module, largest contribution first.
func Analyze(result *bundler.Result, name string) *AnalysisResult {
	outFile := name + ".js"
	analysis := analyzeMetafile(result.Metafile(outFile), name, outFile)
	analysis.MinifiedBytes = len(result.Minified)
	for _, w := range result.Warnings {
		analysis.Warnings = append(analysis.Warnings, w.String())
	}
	if result.MinifyErr != nil {
		analysis.Warnings = append(analysis.Warnings, fmt.Sprintf("minify: %v", result.MinifyErr))
	}
	return analysis
}

// analyzeMetafile processes the metafile and returns analysis
func analyzeMetafile(meta *bundler.Metafile, name, outFile string) *AnalysisResult {
	result := &AnalysisResult{Name: name}

	output, ok := meta.Outputs[outFile]
	if !ok {
		return result
	}
	result.TotalBytes = output.Bytes

	for _, imp := range output.Imports {
		if imp.External {
			result.ExternalImports = append(result.ExternalImports, imp.Path)
		}
	}

	for inputPath, contrib := range output.Inputs {
		inputInfo, ok := meta.Inputs[inputPath]
		if !ok {
			continue
		}

		displayPath := inputPath
		if inputPath == output.EntryPoint {
			displayPath = "<entry> " + inputPath
		}

		percentage := 0.0
		if result.TotalBytes > 0 {
			percentage = float64(contrib.BytesInOutput) / float64(result.TotalBytes) * 100
		}

		result.InputFiles = append(result.InputFiles, FileAnalysis{
			Path:          displayPath,
			Format:        inputInfo.Format,
			Bytes:         inputInfo.Bytes,
			BytesInOutput: contrib.BytesInOutput,
			Percentage:    percentage,
			ImportCount:   len(inputInfo.Imports),
		})
	}

	// Largest first; ties by path so output is stable.
	sort.Slice(result.InputFiles, func(i, j int) bool {
		a, b := result.InputFiles[i], result.InputFiles[j]
		if a.BytesInOutput != b.BytesInOutput {
			return a.BytesInOutput > b.BytesInOutput
		}
		return a.Path < b.Path
	})

	sort.Strings(result.ExternalImports)

	return result
}
