// Package telemetry collects latencies, error rates, and health for the
// pipeline, and exposes alerting thresholds over an in-memory circular
// buffer. Metric names are renamed from the teacher's call-center
// vocabulary (internal/metrics/metrics.go) to the lecture-pipeline domain,
// keeping the same promauto collector style.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lecturecast_sessions_active",
		Help: "Currently active lecture sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lecturecast_sessions_total",
		Help: "Total lecture sessions started",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lecturecast_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	TranslationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lecturecast_translation_latency_seconds",
		Help:    "End-to-end latency from final transcript to translation delivery",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0, 7.0, 10.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lecturecast_errors_total",
		Help: "Error counts by stage and kind",
	}, []string{"stage", "error_type"})

	SegmentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lecturecast_segments_processed_total",
		Help: "Total transcript segments received",
	})

	CoalescerEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lecturecast_coalescer_emitted_total",
		Help: "Coalescer commits emitted vs total updates seen",
	}, []string{"kind"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lecturecast_translation_queue_depth",
		Help: "Current translation queue depth by priority",
	}, []string{"priority"})

	QueueRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lecturecast_translation_queue_rejected_total",
		Help: "Translation jobs rejected by queue overflow",
	})

	FirstPaintLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lecturecast_first_paint_latency_seconds",
		Help:    "Latency from session start to first displayed pair",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0},
	})
)
