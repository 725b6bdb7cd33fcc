// Command georef fits a transformation from a reference layer of control
// point lines and applies it to a vector layer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vector-georef/internal/config"
	"vector-georef/internal/logging"
	"vector-georef/internal/observability"
	"vector-georef/internal/pipeline"
	"vector-georef/internal/project"
	"vector-georef/internal/version"
)

func main() {
	projectPath := flag.String("project", "", "Project file (.georef.yaml), created from -ref and -in if missing")
	ref := flag.String("ref", "", "Reference layer with one line per control point (GeoJSON)")
	in := flag.String("in", "", "Layer to transform (GeoJSON)")
	out := flag.String("out", "", "Output layer (GeoJSON)")
	model := flag.String("model", "", "Transformation model: helmert or polynomial")
	degree := flag.Int("degree", 1, "Polynomial degree, -1 selects it from the control point count")
	reportPath := flag.String("report", "", "Write an HTML residual report (a YAML summary is written next to it)")
	preview := flag.String("preview", "", "Write a PNG preview of the transformed layer")
	configPath := flag.String("config", "", "Config file (default: georef.yaml in . or ./configs)")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address")
	inverse := flag.Bool("inverse", false, "Apply the inverse Helmert transformation")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var proj *project.File
	if *projectPath != "" {
		var created bool
		if proj, created, err = project.Open(*projectPath, *ref, *in); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load project: %v\n", err)
			os.Exit(1)
		}
		if created {
			fmt.Printf("Creating project %s\n", *projectPath)
		} else if proj.Settings.Model != "" {
			cfg.Transform.Model = proj.Settings.Model
			cfg.Transform.Degree = proj.Settings.Degree
		}
	}

	// Explicit flags win over project and config.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["model"] {
		cfg.Transform.Model = *model
	}
	if set["degree"] {
		cfg.Transform.Degree = *degree
	}
	if set["metrics"] {
		cfg.Metrics.Enabled = *metricsAddr != ""
		cfg.Metrics.Addr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply flags: %v\n", err)
		os.Exit(1)
	}

	opts := pipeline.Options{
		ReferencePath: *ref,
		InputPath:     *in,
		OutputPath:    *out,
		ReportPath:    *reportPath,
		PreviewPath:   *preview,
		Method:        cfg.Transform.Method,
		Inverse:       *inverse,
		Workers:       cfg.Transform.Workers,
	}
	if proj != nil {
		fillFromProject(&opts, proj, *projectPath)
	}
	if opts.OutputPath == "" && opts.InputPath != "" {
		opts.OutputPath = strings.TrimSuffix(opts.InputPath, filepath.Ext(opts.InputPath)) + "_transformed.geojson"
	}
	if opts.ReferencePath == "" || opts.InputPath == "" {
		fmt.Println("Usage: georef -ref <reference.geojson> -in <layer.geojson> [-out <out.geojson>] [-model helmert|polynomial] [-degree n]")
		fmt.Println("       georef -project <name.georef.yaml>")
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)
	logger.Debug("starting", "version", version.Version, "commit", version.GitCommit)

	var metrics *observability.Collector
	if cfg.Metrics.Enabled {
		if metrics, err = observability.NewCollector(nil); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to register metrics: %v\n", err)
			os.Exit(1)
		}
		serveMetrics(cfg.Metrics.Addr, logger)
	}
	opts.Logger = logger
	opts.Metrics = metrics

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to georeference: %v\n", err)
		stop()
		os.Exit(1)
	}

	fmt.Printf("=== Result ===\n")
	fmt.Printf("Run: %s\n", res.RunID)
	fmt.Printf("Control points: %d\n", res.Set.Len())
	fmt.Printf("Model: %s\n", res.Fit.Model.Kind())
	fmt.Printf("RMSE: %.4f\n", res.Report.RMSE)
	fmt.Printf("Max residual: %.4f (point %d)\n", res.Report.MaxResidual, res.Report.MaxIndex)
	fmt.Printf("Features written: %d -> %s\n", res.Features, opts.OutputPath)
	if res.OutsideCoverage > 0 {
		fmt.Printf("Warning: %d features extend beyond the control points\n", res.OutsideCoverage)
	}

	if proj != nil {
		proj.Settings.Model = cfg.Transform.Model
		proj.Settings.Degree = cfg.Transform.Degree
		if *ref != "" {
			proj.SetReference(*projectPath, *ref)
		}
		if *in != "" {
			proj.SetInput(*projectPath, *in)
		}
		proj.Fitted = true
		proj.RMSE = res.Report.RMSE
		proj.RunID = res.RunID
		if err := proj.Save(*projectPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save project: %v\n", err)
			stop()
			os.Exit(1)
		}
	}
}

// fillFromProject takes every path not given on the command line from the
// project file.
func fillFromProject(opts *pipeline.Options, proj *project.File, projectPath string) {
	if opts.ReferencePath == "" {
		opts.ReferencePath = proj.GetReferencePath(projectPath)
	}
	if opts.InputPath == "" {
		opts.InputPath = proj.GetInputPath(projectPath)
	}
	if opts.OutputPath == "" {
		opts.OutputPath = proj.GetOutputPath(projectPath)
	}
	if opts.ReportPath == "" {
		opts.ReportPath = proj.GetReportPath(projectPath)
	}
	if opts.PreviewPath == "" {
		opts.PreviewPath = proj.GetPreviewPath(projectPath)
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}
