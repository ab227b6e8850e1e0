package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	clibundler "github.com/fluxbase-eu/jsbundle/cli/bundler"
	"github.com/fluxbase-eu/jsbundle/cli/output"
	"github.com/fluxbase-eu/jsbundle/cli/util"
	"github.com/fluxbase-eu/jsbundle/internal/bundler"
	"github.com/fluxbase-eu/jsbundle/internal/observability"
	"github.com/fluxbase-eu/jsbundle/internal/storage"
)

var (
	buildOutDir      string
	buildMinify      bool
	buildExternals   []string
	buildMetafile    bool
	buildAnalyze     bool
	buildDetails     bool
	buildConcurrency int
)

var buildCmd = &cobra.Command{
	Use:   "build <entry> [entry...]",
	Short: "Bundle one or more entry files",
	Long: `Bundle every entry file into <outdir>/<name>.js, where <name> is the entry's
base name without extension. Entries are built concurrently.

Modules that cannot be found or parsed are reported as warnings; the bundle
still builds and throws MODULE_NOT_FOUND only if the missing module is
required at run time.

Examples:
  jsbundle build src/index.js
  jsbundle build src/a.js src/b.js --minify --outdir build
  jsbundle build src/index.js --external aws-sdk --external '@aws-sdk/*'
  jsbundle build src/index.js --analyze`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildOutDir, "outdir", "", "output directory (default from config: dist)")
	buildCmd.Flags().BoolVar(&buildMinify, "minify", false, "also write a minified <name>.min.js")
	buildCmd.Flags().StringArrayVar(&buildExternals, "external", nil, "module to leave to the host require (repeatable, trailing * matches a prefix)")
	buildCmd.Flags().BoolVar(&buildMetafile, "metafile", false, "write <name>.meta.json describing inputs and outputs")
	buildCmd.Flags().BoolVar(&buildAnalyze, "analyze", false, "print a per-module size breakdown")
	buildCmd.Flags().BoolVar(&buildDetails, "analyze-all", false, "list every module in the size breakdown")
	buildCmd.Flags().IntVar(&buildConcurrency, "concurrency", 0, "maximum number of concurrent builds (default from config)")
}

// applyBuildFlags lets explicitly set flags override the loaded config.
func applyBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("outdir") {
		cfg.OutDir = buildOutDir
	}
	if flags.Changed("minify") {
		cfg.Minify = buildMinify
	}
	if flags.Changed("external") {
		cfg.Externals = append(cfg.Externals, buildExternals...)
	}
	if flags.Changed("metafile") {
		cfg.Metafile = buildMetafile
	}
	if flags.Changed("concurrency") && buildConcurrency > 0 {
		cfg.Concurrency = buildConcurrency
	}
}

// outputNames derives the artifact name of every entry and rejects entries
// that would overwrite each other.
func outputNames(entries []string) ([]string, error) {
	names := make([]string, len(entries))
	seen := make(map[string]string, len(entries))
	for i, entry := range entries {
		base := filepath.Base(entry)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if name == "" || name == "." {
			name = "index"
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("entries %s and %s would both write %s.js", prev, entry, name)
		}
		seen[name] = entry
		names[i] = name
	}
	return names, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	applyBuildFlags(cmd)
	ctx := cmd.Context()

	names, err := outputNames(args)
	if err != nil {
		return err
	}

	fsys := afero.NewOsFs()
	store, err := storage.NewProvider(fsys, &cfg.Storage, cfg.OutDir)
	if err != nil {
		return err
	}
	if err := store.Health(ctx); err != nil {
		return fmt.Errorf("%s storage is not usable: %w", store.Name(), err)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}
	tracer, err := observability.NewTracer(ctx, cfg.Tracing, Version)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	b := bundler.New(fsys,
		bundler.WithStore(store),
		bundler.WithMetrics(metrics),
		bundler.WithTracer(tracer),
	)

	results := make([]*bundler.Result, len(args))
	objects := make([][]*storage.Object, len(args))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, entry := range args {
		g.Go(func() error {
			result, err := b.Bundle(gctx, bundler.Options{
				Entry:      entry,
				Externals:  cfg.Externals,
				MainFields: cfg.MainFields,
				Minify:     cfg.Minify,
				Metafile:   cfg.Metafile,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", entry, err)
			}
			objs, err := b.Write(gctx, result, names[i])
			if err != nil {
				return fmt.Errorf("%s: %w", entry, err)
			}
			results[i] = result
			objects[i] = objs
			return nil
		})
	}
	err = g.Wait()

	if metrics != nil && cfg.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			log.Warn().Err(werr).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics")
		}
	}
	if err != nil {
		return err
	}

	return printBuildResults(names, results, objects)
}

func printBuildResults(names []string, results []*bundler.Result, objects [][]*storage.Object) error {
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		for _, w := range r.Warnings {
			formatter.PrintWarning(fmt.Sprintf("%s: %s", names[i], w))
		}
		if r.MinifyErr != nil {
			formatter.PrintWarning(fmt.Sprintf("%s: %v", names[i], r.MinifyErr))
		}

		minified := "-"
		if r.Minified != "" {
			minified = util.FormatBytes(int64(len(r.Minified)))
		}
		location := ""
		if len(objects[i]) > 0 {
			location = objects[i][0].Location
		}
		rows = append(rows, []string{
			names[i],
			strconv.Itoa(len(r.Modules)),
			strconv.Itoa(len(r.Warnings)),
			util.FormatBytes(int64(len(r.Code))),
			minified,
			location,
		})
	}

	if err := formatter.PrintTable(output.TableData{
		Headers: []string{"NAME", "MODULES", "WARNINGS", "SIZE", "MINIFIED", "OUTPUT"},
		Rows:    rows,
	}); err != nil {
		return err
	}

	if buildAnalyze || buildDetails {
		analyses := make([]*clibundler.AnalysisResult, len(results))
		for i, r := range results {
			analyses[i] = clibundler.Analyze(r, names[i])
			clibundler.DisplayAnalysis(formatter.ErrWriter, analyses[i], buildDetails)
		}
		if len(analyses) > 1 {
			clibundler.DisplaySummary(formatter.ErrWriter, analyses)
		}
	}
	return nil
}
