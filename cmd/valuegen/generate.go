package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"valuegen/internal/adapters/dump"
	"valuegen/internal/blob"
	"valuegen/internal/core"
)

type generateOptions struct {
	out             string
	unresolvedOut   string
	persist         bool
	watch           bool
	metricsTextfile string
	tracePath       string
	otelTracePath   string
	hints           bool
}

func newGenerateCmd(a *app) *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate <hard-values> <recipes>",
		Short: "Derive values for every item without a hard value",
		Long: `Loads the hard value table and the recipe dump from blob storage, propagates
values through recipes and tags until nothing changes, and writes the items
that received a value. With the fs driver both arguments may be paths under
the blob root.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("hints") {
				opts.hints = a.cfg.Hints
			}
			return a.generate(cmd.Context(), opts, args[0], args[1])
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.out, "out", "", "key of the value document (default from config)")
	flags.StringVar(&opts.unresolvedOut, "unresolved-out", "", "key of the unresolved document (default from config)")
	flags.BoolVar(&opts.persist, "persist", false, "store the run in the configured repository")
	flags.BoolVar(&opts.watch, "watch", false, "regenerate whenever an input file changes (fs driver only)")
	flags.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after each run")
	flags.StringVar(&opts.tracePath, "trace", "", "append JSON trace lines to this file")
	flags.StringVar(&opts.otelTracePath, "otel-trace", "", "append OpenTelemetry spans to this file")
	flags.BoolVar(&opts.hints, "hints", false, "suggest the nearest valued item for unresolved items")
	return cmd
}

func (a *app) generate(ctx context.Context, opts generateOptions, hardArg, recipesArg string) error {
	bcfg := a.cfg.BlobConfig()
	if opts.watch && bcfg.Driver != blob.DriverFilesystem {
		return fmt.Errorf("--watch needs the %s blob driver, got %s", blob.DriverFilesystem, bcfg.Driver)
	}
	store, err := blob.Open(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	hardKey, err := blobKey(bcfg, hardArg)
	if err != nil {
		return err
	}
	recipesKey, err := blobKey(bcfg, recipesArg)
	if err != nil {
		return err
	}
	policy, err := a.cfg.GraphPolicy()
	if err != nil {
		return err
	}

	keys := a.cfg.OutputKeys()
	if opts.out != "" {
		keys.Values = opts.out
	}
	if opts.unresolvedOut != "" {
		keys.Unresolved = opts.unresolvedOut
	}

	expvarMetrics := core.NewExpvarMetricsRecorder("")
	metrics := core.MultiMetrics{expvarMetrics}
	var prom *core.PrometheusMetricsRecorder
	if opts.metricsTextfile != "" {
		prom = core.NewPrometheusMetricsRecorder()
		metrics = append(metrics, prom)
	}

	svcOpts := []core.ServiceOption{
		core.WithPolicy(policy),
		core.WithServiceLogger(a.logger),
		core.WithServiceMetrics(metrics),
		core.WithHints(opts.hints),
	}
	var tracers core.MultiTracer
	if opts.tracePath != "" {
		f, err := openAppend(opts.tracePath)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		tracers = append(tracers, core.NewJSONTracer(f))
	}
	if opts.otelTracePath != "" {
		f, err := openAppend(opts.otelTracePath)
		if err != nil {
			return fmt.Errorf("open otel trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		tracer, shutdown, err := core.NewStdoutOTelTracer(f)
		if err != nil {
			return err
		}
		// registered after the file close so spans are flushed first
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				a.logger.Warn("flush otel spans", zap.Error(err))
			}
		}()
		tracers = append(tracers, tracer)
	}
	if len(tracers) > 0 {
		svcOpts = append(svcOpts, core.WithServiceTracer(tracers))
	}
	if opts.persist {
		repo, err := core.OpenRepository(ctx, a.cfg.StorageConfig())
		if err != nil {
			return fmt.Errorf("open repository: %w", err)
		}
		defer func() { _ = repo.Close() }()
		svcOpts = append(svcOpts, core.WithRepository(repo))
	}
	svc := core.NewService(svcOpts...)
	a.logger.Debug("graph policy",
		zap.Stringers("excluded_types", svc.Policy().ExcludedTypes),
		zap.Strings("excluded_namespaces", svc.Policy().ExcludedTypeNamespaces),
		zap.Stringers("excluded_tags", svc.Policy().ExcludedTags),
	)
	loader := dump.NewLoader(store, a.logger)
	exporter := dump.NewExporter(store, a.logger)

	once := func(ctx context.Context) error {
		in, err := loader.Load(ctx, hardKey, recipesKey)
		if err != nil {
			return err
		}
		res, err := svc.Generate(ctx, in.Recipes, in.Hard)
		if err != nil {
			return err
		}
		if err := exporter.Export(ctx, res, keys); err != nil {
			return err
		}
		if opts.persist {
			if err := svc.Persist(ctx, res); err != nil {
				return err
			}
		}
		if prom != nil {
			if err := prom.WriteTextfile(opts.metricsTextfile); err != nil {
				return err
			}
		}
		a.logger.Debug("metrics", zap.Any("totals", expvarMetrics.Snapshot()))
		_, err = fmt.Fprintf(a.stdout, "run %s: valued %d of %d missing items in %d rounds, %d unresolved\n",
			res.RunID, res.Report.GivenCount(), res.Report.Total, res.Summary.Rounds, len(res.Report.Unresolved))
		return err
	}

	if err := once(ctx); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}
	paths := []string{
		filepath.Join(bcfg.FSRoot, filepath.FromSlash(hardKey)),
		filepath.Join(bcfg.FSRoot, filepath.FromSlash(recipesKey)),
	}
	w, err := dump.NewWatcher(paths, once, dump.WithWatchLogger(a.logger))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// blobKey maps a command line argument to a store key. With the fs driver,
// paths are taken relative to the working directory and must lie under the
// blob root; other drivers use the argument as the key.
func blobKey(cfg blob.Config, arg string) (string, error) {
	if arg == "" {
		return "", errors.New("empty input key")
	}
	if cfg.Driver != blob.DriverFilesystem {
		return arg, nil
	}
	root := cfg.FSRoot
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve blob root: %w", err)
	}
	absArg, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", arg, err)
	}
	rel, err := filepath.Rel(absRoot, absArg)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the blob root %s", arg, root)
	}
	return filepath.ToSlash(rel), nil
}
