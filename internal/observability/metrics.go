// Package observability exposes Prometheus metrics for fits and transforms.
package observability

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the georeferencing metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Fits                 *prometheus.CounterVec
	FitDuration          prometheus.Histogram
	FitRMSE              *prometheus.GaugeVec
	GeometriesTotal      *prometheus.CounterVec
	ControlPointsLoaded  prometheus.Gauge
	OutsideCoverageTotal prometheus.Counter
}

// NewCollector registers the metrics against reg, or the default registerer
// when reg is nil. Registering twice returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	fits, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "georef_fits_total",
		Help: "Transformation fits by model and outcome.",
	}, []string{"model", "outcome"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "georef_fit_duration_seconds",
		Help:    "Time spent estimating transformation parameters.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}))
	if err != nil {
		return nil, err
	}

	rmse, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "georef_fit_rmse",
		Help: "Root-mean-square residual of the last successful fit.",
	}, []string{"model"}))
	if err != nil {
		return nil, err
	}

	geoms, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "georef_geometries_total",
		Help: "Geometries processed by the transformer, by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	loaded, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "georef_control_points",
		Help: "Number of control points in the last loaded set.",
	}))
	if err != nil {
		return nil, err
	}

	outside, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "georef_geometries_outside_coverage_total",
		Help: "Geometries with vertices outside the control point hull.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		Fits:                 fits,
		FitDuration:          duration,
		FitRMSE:              rmse,
		GeometriesTotal:      geoms,
		ControlPointsLoaded:  loaded,
		OutsideCoverageTotal: outside,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFit records one estimator call.
func (c *Collector) ObserveFit(model string, d time.Duration, rmse float64, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Fits.WithLabelValues(model, outcome).Inc()
	c.FitDuration.Observe(d.Seconds())
	if err == nil {
		c.FitRMSE.WithLabelValues(model).Set(rmse)
	}
}

// ObserveGeometries records a transformed batch.
func (c *Collector) ObserveGeometries(n int, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.GeometriesTotal.WithLabelValues(outcome).Add(float64(n))
}

// SetControlPoints records the size of the loaded control point set.
func (c *Collector) SetControlPoints(n int) {
	if c == nil {
		return
	}
	c.ControlPointsLoaded.Set(float64(n))
}

// AddOutsideCoverage counts geometries that extend past the control points.
func (c *Collector) AddOutsideCoverage(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.OutsideCoverageTotal.Add(float64(n))
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
