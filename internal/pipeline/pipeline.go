// Package pipeline runs a complete georeferencing pass: control points are
// read from a reference layer, a model is fitted and the input layer is
// carried into the target frame.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"vector-georef/internal/controlpoint"
	"vector-georef/internal/layer"
	"vector-georef/internal/logging"
	"vector-georef/internal/observability"
	"vector-georef/internal/render"
	"vector-georef/internal/report"
	"vector-georef/internal/transform"
	"vector-georef/internal/warp"
	"vector-georef/pkg/geometry"
)

// ErrInverseUnsupported is returned when an inverse run is requested for a
// model without a closed-form inverse.
var ErrInverseUnsupported = errors.New("inverse transformation requires a helmert model")

// MethodFunc picks the estimator once the control point count is known.
type MethodFunc func(n int) (transform.Method, error)

// Options configures a run.
type Options struct {
	ReferencePath string
	InputPath     string
	OutputPath    string
	ReportPath    string // HTML; the YAML summary is written next to it
	PreviewPath   string // PNG

	Method    MethodFunc            // nil selects Helmert
	Extractor controlpoint.Extractor // nil selects LineEndpoints
	Inverse   bool                  // map from the target frame back to the source frame
	Workers   int

	Logger  *slog.Logger
	Metrics *observability.Collector
}

// Result describes a finished run.
type Result struct {
	RunID           string
	Set             *controlpoint.Set
	Fit             *transform.Fit
	Report          transform.Report
	Features        int
	OutsideCoverage int
}

// Run executes the pipeline.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Noop()
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	// Step 1: control points
	refLayer, err := layer.Read(opts.ReferencePath)
	if err != nil {
		return nil, fmt.Errorf("read reference layer: %w", err)
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = controlpoint.LineEndpoints{}
	}
	set, err := extractor.Extract(layer.Geometries(refLayer))
	if err != nil {
		return nil, fmt.Errorf("extract control points: %w", err)
	}
	opts.Metrics.SetControlPoints(set.Len())
	logger.Info("control points loaded", "path", opts.ReferencePath, "count", set.Len())

	// Step 2: fit
	method := transform.Helmert()
	if opts.Method != nil {
		if method, err = opts.Method(set.Len()); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	fit, err := transform.Estimate(set, method)
	if err != nil {
		opts.Metrics.ObserveFit(string(method.Kind), time.Since(start), 0, err)
		return nil, fmt.Errorf("fit %s: %w", method, err)
	}
	rep, err := transform.Analyze(fit.Model, set)
	if err != nil {
		opts.Metrics.ObserveFit(string(method.Kind), time.Since(start), 0, err)
		return nil, fmt.Errorf("analyze %s: %w", method, err)
	}
	opts.Metrics.ObserveFit(string(method.Kind), time.Since(start), rep.RMSE, nil)
	logger.Info("model fitted",
		"model", method.String(),
		"rmse", rep.RMSE,
		"max_residual", rep.MaxResidual,
		"max_index", rep.MaxIndex)
	for i, r := range rep.Residuals {
		logger.Debug("residual", "index", i, "dx", r.DX, "dy", r.DY, "magnitude", r.Magnitude())
	}

	model := fit.Model
	coverage := set.Coverage()
	if opts.Inverse {
		h, ok := model.(transform.HelmertModel)
		if !ok {
			return nil, fmt.Errorf("%s: %w", method, ErrInverseUnsupported)
		}
		if model, err = h.Inverse(); err != nil {
			return nil, fmt.Errorf("invert %s: %w", method, err)
		}
		coverage = geometry.HullRing(set.Targets())
	}

	// Step 3: transform the input layer
	inLayer, err := layer.Read(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("read input layer: %w", err)
	}
	geoms := layer.Geometries(inLayer)

	outside := countOutside(geoms, coverage)
	opts.Metrics.AddOutsideCoverage(outside)
	if outside > 0 {
		logger.Warn("geometries extend beyond control point coverage", "count", outside)
	}

	warped, err := warp.TransformAll(ctx, geoms, model, opts.Workers)
	opts.Metrics.ObserveGeometries(len(geoms), err)
	if err != nil {
		return nil, fmt.Errorf("transform layer: %w", err)
	}
	outLayer, err := layer.WithGeometries(inLayer, warped)
	if err != nil {
		return nil, err
	}
	if err := layer.Write(opts.OutputPath, outLayer); err != nil {
		return nil, fmt.Errorf("write output layer: %w", err)
	}
	logger.Info("layer transformed", "path", opts.OutputPath, "features", len(warped))

	// Step 4: report and preview
	if opts.ReportPath != "" {
		summary := report.Build(runID, fit, set, rep)
		if err := writeFile(opts.ReportPath, func(w io.Writer) error {
			return report.WriteHTML(w, summary)
		}); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		yamlPath := SummaryPath(opts.ReportPath)
		if err := writeFile(yamlPath, func(w io.Writer) error {
			return report.WriteYAML(w, summary)
		}); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
		logger.Info("report written", "html", opts.ReportPath, "yaml", yamlPath)
	}

	if opts.PreviewPath != "" {
		scene := render.Scene{Geometries: warped, Report: rep}
		if !opts.Inverse {
			// residual arrows live in the target frame
			scene.Set = set
		}
		img, err := render.Render(scene, render.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("render preview: %w", err)
		}
		if err := render.WritePNG(opts.PreviewPath, img); err != nil {
			return nil, fmt.Errorf("write preview: %w", err)
		}
		logger.Info("preview written", "path", opts.PreviewPath)
	}

	return &Result{
		RunID:           runID,
		Set:             set,
		Fit:             fit,
		Report:          rep,
		Features:        len(warped),
		OutsideCoverage: outside,
	}, nil
}

// SummaryPath returns the YAML summary path that accompanies an HTML report.
func SummaryPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".yaml"
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// countOutside counts geometries with at least one vertex outside hull.
// Vertices on the boundary are inside. A nil hull covers nothing worth
// checking.
func countOutside(geoms []orb.Geometry, hull orb.Ring) int {
	if len(hull) < 4 {
		return 0
	}
	n := 0
	for _, g := range geoms {
		for _, p := range vertices(g, nil) {
			if !planar.RingContains(hull, p) {
				n++
				break
			}
		}
	}
	return n
}

func vertices(g orb.Geometry, dst []orb.Point) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		dst = append(dst, v)
	case orb.MultiPoint:
		dst = append(dst, v...)
	case orb.LineString:
		dst = append(dst, v...)
	case orb.Ring:
		dst = append(dst, v...)
	case orb.MultiLineString:
		for _, ls := range v {
			dst = append(dst, ls...)
		}
	case orb.Polygon:
		for _, r := range v {
			dst = append(dst, r...)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				dst = append(dst, r...)
			}
		}
	case orb.Collection:
		for _, m := range v {
			dst = vertices(m, dst)
		}
	}
	return dst
}
