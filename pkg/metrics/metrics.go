package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes pipeline and optimizer metrics
// ⭐ SSOT: 모든 Prometheus 메트릭은 여기서만 정의
type Recorder struct {
	fits          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	scenarios     *prometheus.CounterVec
	iterations    prometheus.Histogram
	diagnostics   *prometheus.CounterVec
	published     *prometheus.CounterVec
	elasticity    *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the recorder on the default registry. Call once per process.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgm_model_fits_total",
				Help: "Model fits by type and quality",
			},
			[]string{"model", "quality"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rgm_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		scenarios: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgm_scenarios_total",
				Help: "Completed scenarios by status",
			},
			[]string{"status"},
		),
		iterations: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rgm_optimizer_iterations",
				Help:    "Constraint repair iterations per scenario",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 200, 500},
			},
		),
		diagnostics: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgm_diagnostics_total",
				Help: "Per-SKU diagnostic flags raised",
			},
			[]string{"flag"},
		),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgm_published_total",
				Help: "Scenario publications by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
		elasticity: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rgm_elasticity",
				Help: "Latest point elasticity per SKU",
			},
			[]string{"sku"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rgm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// The methods below accept a nil receiver so callers can run without metrics.

// RecordFit counts one model fit
func (r *Recorder) RecordFit(model, quality string) {
	if r == nil {
		return
	}
	r.fits.WithLabelValues(model, quality).Inc()
}

// ObserveStage records how long a pipeline stage took
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordScenario counts a finished scenario
func (r *Recorder) RecordScenario(status string, iterations int) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(status).Inc()
	r.iterations.Observe(float64(iterations))
}

// RecordDiagnostic counts one diagnostic flag
func (r *Recorder) RecordDiagnostic(flag string) {
	if r == nil {
		return
	}
	r.diagnostics.WithLabelValues(flag).Inc()
}

// RecordPublish counts a publication attempt
func (r *Recorder) RecordPublish(sink string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.published.WithLabelValues(sink, outcome).Inc()
}

// SetElasticity records the latest elasticity of a SKU
func (r *Recorder) SetElasticity(sku string, e float64) {
	if r == nil {
		return
	}
	r.elasticity.WithLabelValues(sku).Set(e)
}

// ObserveHTTP records one served request
func (r *Recorder) ObserveHTTP(route, method, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
