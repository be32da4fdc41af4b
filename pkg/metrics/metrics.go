package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TicksTotal          *prometheus.CounterVec
	StageFailuresTotal  *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	SummariesTotal      prometheus.Counter
	ProcessedAddresses  prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glance_ticks_total",
			Help: "Total number of polling ticks by result.",
		}, []string{"result"}),
		StageFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glance_stage_failures_total",
			Help: "Total number of failed pipeline stages.",
		}, []string{"stage", "outcome"}), // outcome: transient, fatal
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glance_stage_duration_seconds",
			Help:    "Duration of extraction and summarization calls.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		SummariesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "glance_summaries_total",
			Help: "Total number of summaries emitted.",
		}),
		ProcessedAddresses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "glance_processed_addresses",
			Help: "Number of addresses summarized in this run.",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncTick(result string) {
	m.TicksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncStageFailure(stage, outcome string) {
	m.StageFailuresTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}
