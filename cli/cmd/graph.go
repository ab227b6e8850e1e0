package cmd

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/jsbundle/cli/output"
	"github.com/fluxbase-eu/jsbundle/internal/graph"
	"github.com/fluxbase-eu/jsbundle/internal/jsast"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

var graphCmd = &cobra.Command{
	Use:   "graph <entry>",
	Short: "Show the module graph of an entry file",
	Long: `List every module reachable from the entry in ID order, with its module
system and the IDs it depends on. External dependencies are shown by name.

Examples:
  jsbundle graph src/index.js
  jsbundle graph src/index.js -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	fsys := afero.NewOsFs()
	res, err := resolver.New(fsys, resolver.Options{
		Externals:  cfg.Externals,
		MainFields: cfg.MainFields,
	})
	if err != nil {
		return err
	}

	g, err := graph.NewBuilder(fsys, jsast.NewParser(), res).Build(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	for _, w := range g.Warnings() {
		formatter.PrintWarning(w.String())
	}
	return formatter.PrintTable(graphTable(g))
}

func graphTable(g *graph.Graph) output.TableData {
	root := filepath.Dir(g.Entry)
	rows := make([][]string, 0, g.Len())
	for _, m := range g.Modules() {
		deps := make([]string, 0, len(m.Edges))
		for _, e := range m.Edges {
			switch {
			case e.External:
				deps = append(deps, e.Specifier)
			case e.Path == "":
				deps = append(deps, "?"+e.Specifier)
			default:
				if target, ok := g.ByPath(e.Path); ok {
					deps = append(deps, strconv.Itoa(target.ID))
				}
			}
		}
		rel, err := filepath.Rel(root, m.Path)
		if err != nil {
			rel = m.Path
		}
		rows = append(rows, []string{
			strconv.Itoa(m.ID),
			m.System.String(),
			filepath.ToSlash(rel),
			strings.Join(deps, ","),
		})
	}
	return output.TableData{
		Headers: []string{"ID", "SYSTEM", "PATH", "DEPS"},
		Rows:    rows,
	}
}
