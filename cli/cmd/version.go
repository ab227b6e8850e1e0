package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/jsbundle/cli/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version, commit hash, and build date of jsbundle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return formatter.PrintKeyValues([]output.KeyValue{
			{Key: "version", Value: Version},
			{Key: "commit", Value: Commit},
			{Key: "build_date", Value: BuildDate},
		})
	},
}
