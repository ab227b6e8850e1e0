package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fluxbase-eu/jsbundle/cli/util"
	"github.com/fluxbase-eu/jsbundle/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect bundler configuration",
	Long:  `View the effective configuration or create a configuration file.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Long: `Show the configuration after merging defaults, the config file, .env and
JSBUNDLE_* environment variables. Secrets are masked.

Examples:
  jsbundle config view
  jsbundle config view --output json`,
	RunE: runConfigView,
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with the current settings",
	Long: `Write the effective configuration to path (default jsbundle.yaml).

Examples:
  jsbundle config init
  jsbundle config init config/jsbundle.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configInitCmd)
}

// redacted returns a copy of c with credentials masked.
func redacted(c *config.Config) config.Config {
	out := *c
	out.Storage.S3AccessKey = util.MaskSecret(c.Storage.S3AccessKey)
	out.Storage.S3SecretKey = util.MaskSecret(c.Storage.S3SecretKey)
	return out
}

func runConfigView(cmd *cobra.Command, args []string) error {
	return formatter.Print(redacted(cfg))
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "jsbundle.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if !configInitForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	// Credentials belong in the environment, not in the file.
	c := *cfg
	c.Storage.S3AccessKey = ""
	c.Storage.S3SecretKey = ""

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	formatter.PrintSuccess(fmt.Sprintf("Configuration written to %s", path))
	return nil
}
