package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/jsbundle/cli/output"
	"github.com/fluxbase-eu/jsbundle/internal/resolver"
)

// entryExtensions are the file types offered when completing entry points.
var entryExtensions = []string{"js", "mjs", "cjs", "json"}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for jsbundle.

Entry arguments complete to .js, .mjs, .cjs and .json files, --output to the
supported formats and --external to the Node.js core modules.

Examples:
  source <(jsbundle completion bash)
  jsbundle completion zsh > "${fpath[1]}/_jsbundle"
  jsbundle completion fish > ~/.config/fish/completions/jsbundle.fish
  jsbundle completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}

func completeEntries(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return entryExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// completeSingleEntry stops offering files once the entry is given.
func completeSingleEntry(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completeEntries(cmd, args, toComplete)
}

func completeOutputFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(output.FormatTable) + "\thuman readable table",
		string(output.FormatJSON) + "\tindented JSON",
		string(output.FormatYAML) + "\tYAML",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeExternals(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, name := range resolver.Builtins() {
		if strings.HasPrefix(name, toComplete) {
			names = append(names, name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// registerCompletions wires dynamic completion into the commands.
func registerCompletions() {
	buildCmd.ValidArgsFunction = completeEntries
	graphCmd.ValidArgsFunction = completeSingleEntry
	_ = rootCmd.RegisterFlagCompletionFunc("output", completeOutputFormats)
	_ = buildCmd.RegisterFlagCompletionFunc("external", completeExternals)
}
