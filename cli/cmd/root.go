// Package cmd provides the Cobra commands for the jsbundle CLI.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/jsbundle/cli/output"
	"github.com/fluxbase-eu/jsbundle/internal/config"
	"github.com/fluxbase-eu/jsbundle/internal/logging"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool

	// Shared across commands
	cfg       *config.Config
	logger    *logging.Logger
	formatter *output.Formatter
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jsbundle",
	Short: "jsbundle - bundle CommonJS and ES modules into a single script",
	Long: `jsbundle follows require() and import statements from an entry file,
lowers ES modules to CommonJS and writes one self-contained script.

Get started:
  jsbundle build src/index.js      Bundle into ./dist/index.js
  jsbundle graph src/index.js      Show the module graph
  jsbundle --help                  Show available commands`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			log.Debug().
				Int("warnings", logger.Count(zerolog.WarnLevel)).
				Int("errors", logger.Count(zerolog.ErrorLevel)).
				Msg("Command finished")
			_ = logger.Close()
		}
	},
}

// Execute runs the CLI
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./jsbundle.yaml or ./config/jsbundle.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(resolveCmd)

	registerCompletions()
}

// setup loads configuration and configures logging and output for every
// command.
func setup(cmd *cobra.Command, args []string) error {
	// Silence errors only when --quiet is used
	cmd.SilenceErrors = quiet

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	logger, err = logging.Setup(cfg.Log)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format, noHeaders, quiet)
	formatter.Writer = cmd.OutOrStdout()
	formatter.ErrWriter = cmd.ErrOrStderr()

	log.Debug().Str("command", cmd.Name()).Str("outdir", cfg.OutDir).Msg("Configuration loaded")
	return nil
}
