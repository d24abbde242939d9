package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal  *prometheus.CounterVec
	EmotionLabels  *prometheus.CounterVec
	StageLatency   *prometheus.HistogramVec
	ProviderErrors *prometheus.CounterVec
	QueueRejected  prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heart_analyses_total",
				Help: "Analyses that reached a terminal status",
			},
			[]string{"status"},
		),
		EmotionLabels: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heart_emotion_labels_total",
				Help: "Emotion estimates produced, by label",
			},
			[]string{"label"},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heart_pipeline_stage_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heart_provider_errors_total",
				Help: "Failed calls to external providers",
			},
			[]string{"provider"},
		),
		QueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "heart_pipeline_rejected_total",
			Help: "Submissions rejected because the queue was full or closing",
		}),
	}
	reg.MustRegister(
		m.AnalysesTotal,
		m.EmotionLabels,
		m.StageLatency,
		m.ProviderErrors,
		m.QueueRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (m *Metrics) AnalysisFinished(status string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) EmotionLabeled(label string) {
	if m == nil {
		return
	}
	m.EmotionLabels.WithLabelValues(label).Inc()
}

func (m *Metrics) ProviderFailed(provider string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider).Inc()
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.QueueRejected.Inc()
}
