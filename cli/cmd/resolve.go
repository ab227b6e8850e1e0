package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/jsbundle/cli/output"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

var resolveFrom string

var resolveCmd = &cobra.Command{
	Use:   "resolve <specifier>",
	Short: "Show which file a specifier resolves to",
	Long: `Resolve a require/import specifier the way the bundler does, as seen from
the file given by --from (default: a file in the working directory).

Examples:
  jsbundle resolve ./lib/util --from src/index.js
  jsbundle resolve lodash/fp --from src/index.js`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveFrom, "from", "", "file the specifier is resolved from")
}

func runResolve(cmd *cobra.Command, args []string) error {
	from := resolveFrom
	if from == "" {
		from = "index.js"
	}
	from, err := filepath.Abs(from)
	if err != nil {
		return err
	}

	res, err := resolver.New(afero.NewOsFs(), resolver.Options{
		Externals:  cfg.Externals,
		MainFields: cfg.MainFields,
	})
	if err != nil {
		return err
	}

	resolution, err := res.Resolve(args[0], resolver.Context{
		FromPath:   from,
		SearchRoot: filepath.Dir(from),
	})
	if err != nil {
		var notFound *resolver.ModuleNotFoundError
		if errors.As(err, &notFound) {
			for _, tried := range notFound.Tried {
				formatter.PrintWarning("tried " + tried)
			}
		}
		return err
	}

	pairs := []output.KeyValue{
		{Key: "specifier", Value: args[0]},
		{Key: "external", Value: strconv.FormatBool(resolution.External)},
	}
	if !resolution.External {
		pairs = append(pairs,
			output.KeyValue{Key: "path", Value: resolution.Path},
			output.KeyValue{Key: "search_root", Value: resolution.SearchRoot},
		)
	}
	if resolution.Package != "" {
		pairs = append(pairs, output.KeyValue{Key: "package", Value: resolution.Package})
	}
	if err := formatter.PrintKeyValues(pairs); err != nil {
		return fmt.Errorf("failed to print resolution: %w", err)
	}
	return nil
}
