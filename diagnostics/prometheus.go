package diagnostics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver turns calibration events into metrics.
type PrometheusObserver struct {
	levels     *prometheus.CounterVec
	iterations prometheus.Histogram
	residual   *prometheus.GaugeVec
	fallbacks  prometheus.Counter
}

// NewPrometheusObserver creates the collectors and registers them with reg.
// A nil reg skips registration.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		levels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ratetree",
			Name:      "calibration_levels_total",
			Help:      "Calibrated lattice levels by bisection outcome.",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ratetree",
			Name:      "calibration_iterations",
			Help:      "Bisection trials spent per lattice level.",
			Buckets:   []float64{5, 10, 20, 30, 40, 60, 100},
		}),
		residual: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ratetree",
			Name:      "calibration_residual",
			Help:      "Absolute discount-factor residual of the last calibration, by level.",
		}, []string{"level"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ratetree",
			Name:      "daycount_fallbacks_total",
			Help:      "Unrecognized day-count tags replaced by ACT/365.",
		}),
	}
	if reg == nil {
		return o, nil
	}
	for _, c := range []prometheus.Collector{o.levels, o.iterations, o.residual, o.fallbacks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) Observe(e Event) {
	switch e.Kind {
	case CalibrationConverged:
		o.levels.WithLabelValues("converged").Inc()
	case CalibrationNotConverged:
		o.levels.WithLabelValues("not_converged").Inc()
	case DayCountFallback:
		o.fallbacks.Inc()
		return
	default:
		return
	}
	o.iterations.Observe(float64(e.Iterations))
	o.residual.WithLabelValues(strconv.Itoa(e.Level)).Set(e.Residual)
}

// Levels exposes the per-outcome level counter.
func (o *PrometheusObserver) Levels() *prometheus.CounterVec { return o.levels }

// Fallbacks exposes the day-count fallback counter.
func (o *PrometheusObserver) Fallbacks() prometheus.Counter { return o.fallbacks }
