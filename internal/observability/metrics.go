package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the LWF pipeline.
type Metrics struct {
	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Resampling metrics.
	StepsResampled prometheus.Counter
	NoDataSteps    prometheus.Counter
	PlanCache      *prometheus.CounterVec // labels: result={hit,miss}
	PlanBuild      prometheus.Histogram

	// Flux metrics.
	CellsComputed prometheus.Counter
	CellsClamped  prometheus.Counter

	// Product notification metrics.
	PublishErrors  prometheus.Counter
	PublishEnabled prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.StepsResampled,
		m.NoDataSteps,
		m.PlanCache,
		m.PlanBuild,
		m.CellsComputed,
		m.CellsClamped,
		m.PublishErrors,
		m.PublishEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lwf",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-resample-compute-write run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lwf",
			Name:      "pipeline_running",
			Help:      "1 when the scheduled pipeline is active, 0 when shut down.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lwf",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		StepsResampled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "resample_steps_total",
			Help:      "Time steps interpolated onto the target grid.",
		}),
		NoDataSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "resample_no_data_steps_total",
			Help:      "Time steps with fewer than three valid source points.",
		}),
		PlanCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "plan_cache_total",
			Help:      "Interpolation plan cache lookups by result.",
		}, []string{"result"}),
		PlanBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lwf",
			Name:      "plan_build_duration_seconds",
			Help:      "Time to triangulate source points and locate target cells.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		CellsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "flux_cells_total",
			Help:      "Valid liquid water flux cells computed.",
		}),
		CellsClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "flux_cells_clamped_total",
			Help:      "Flux cells whose negative raw value was clamped to zero.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lwf",
			Name:      "publish_errors_total",
			Help:      "Failed product notifications.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lwf",
			Name:      "publish_enabled",
			Help:      "1 when product notifications are enabled, 0 otherwise.",
		}),
	}
}
