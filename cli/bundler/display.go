package bundler

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fluxbase-eu/jsbundle/cli/util"
)

// DisplayAnalysis prints the bundle analysis in a formatted way
func DisplayAnalysis(w io.Writer, result *AnalysisResult, showDetails bool) {
	_, _ = fmt.Fprintf(w, "\n=== Bundle Analysis: %s ===\n", result.Name)
	_, _ = fmt.Fprintf(w, "Total bundle size: %s\n", util.FormatBytes(int64(result.TotalBytes)))
	if result.MinifiedBytes > 0 {
		_, _ = fmt.Fprintf(w, "Minified size:     %s\n", util.FormatBytes(int64(result.MinifiedBytes)))
	}

	if len(result.ExternalImports) > 0 {
		_, _ = fmt.Fprintln(w, "\nExternal modules (loaded by the host require):")
		for _, imp := range result.ExternalImports {
			_, _ = fmt.Fprintf(w, "  - %s\n", imp)
		}
	}

	if len(result.InputFiles) > 0 {
		_, _ = fmt.Fprintln(w, "\nBundle breakdown:")

		maxFiles := 10
		if showDetails {
			maxFiles = len(result.InputFiles)
		}

		// Calculate max path length for alignment
		maxPathLen := 0
		for i, file := range result.InputFiles {
			if i >= maxFiles {
				break
			}
			displayPath := util.TruncateStart(file.Path, 50)
			if len(displayPath) > maxPathLen {
				maxPathLen = len(displayPath)
			}
		}

		for i, file := range result.InputFiles {
			if i >= maxFiles {
				remaining := len(result.InputFiles) - maxFiles
				_, _ = fmt.Fprintf(w, "  ... and %d more modules\n", remaining)
				break
			}

			displayPath := util.TruncateStart(file.Path, 50)
			padding := strings.Repeat(" ", maxPathLen-len(displayPath))
			_, _ = fmt.Fprintf(w, "  %s%s  %-3s  %10s  %5.1f%%\n",
				displayPath,
				padding,
				file.Format,
				util.FormatBytes(int64(file.BytesInOutput)),
				file.Percentage,
			)
		}
	}

	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range result.Warnings {
			_, _ = fmt.Fprintf(w, "  - %s\n", warn)
		}
	}

	_, _ = fmt.Fprintln(w)
}

// DisplaySummary prints a compact summary of multiple analyses
func DisplaySummary(w io.Writer, results []*AnalysisResult) {
	if len(results) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w, "\n=== Bundle Size Summary ===")

	sorted := make([]*AnalysisResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalBytes > sorted[j].TotalBytes
	})

	maxNameLen := 6 // "BUNDLE"
	for _, r := range sorted {
		if len(r.Name) > maxNameLen {
			maxNameLen = len(r.Name)
		}
	}

	namePadding := strings.Repeat(" ", maxNameLen-6)
	_, _ = fmt.Fprintf(w, "BUNDLE%s  BUNDLE SIZE  MODULES  EXTERNALS\n", namePadding)
	_, _ = fmt.Fprintf(w, "%s  -----------  -------  ---------\n", strings.Repeat("-", maxNameLen))

	var totalSize int
	for _, r := range sorted {
		totalSize += r.TotalBytes
		padding := strings.Repeat(" ", maxNameLen-len(r.Name))
		_, _ = fmt.Fprintf(w, "%s%s  %11s  %7d  %9d\n",
			r.Name,
			padding,
			util.FormatBytes(int64(r.TotalBytes)),
			len(r.InputFiles),
			len(r.ExternalImports),
		)
	}

	_, _ = fmt.Fprintf(w, "%s  -----------  -------  ---------\n", strings.Repeat("-", maxNameLen))
	totalPadding := strings.Repeat(" ", maxNameLen-5)
	_, _ = fmt.Fprintf(w, "TOTAL%s  %11s\n", totalPadding, util.FormatBytes(int64(totalSize)))
	_, _ = fmt.Fprintln(w)
}
