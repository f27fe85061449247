package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stampline",
			Name:      "pages_processed_total",
			Help:      "Total number of pages processed per stage",
		},
		[]string{"stage", "status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stampline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	OCRRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stampline",
			Name:      "ocr_requests_total",
			Help:      "Total number of OCR recognition calls",
		},
		[]string{"engine", "status"},
	)

	FieldFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stampline",
			Name:      "field_flags_total",
			Help:      "Total number of field-level validation flags",
		},
		[]string{"field"},
	)

	CheckpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stampline",
			Name:      "checkpoints_total",
			Help:      "Total number of pipeline checkpoints written",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PagesProcessedTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(OCRRequestsTotal)
	prometheus.MustRegister(FieldFlagsTotal)
	prometheus.MustRegister(CheckpointsTotal)
	pipelineMetricsRegistered = true
}
