// Package metrics exposes Prometheus counters/histograms for job and page
// throughput, an ambient concern the distilled spec.md's component table
// omits but that every teacher-adjacent service in the pack (davrot-gogotex)
// carries via prometheus/client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundocr_jobs_total",
		Help: "Total PDF jobs processed, by terminal status.",
	}, []string{"status"})

	PageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "groundocr_page_duration_seconds",
		Help:    "Per-page pipeline duration (infer+rewrite+parse).",
		Buckets: prometheus.DefBuckets,
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "groundocr_queue_depth",
		Help: "Approximate number of task ids waiting in the broker queue.",
	})

	InferenceCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groundocr_inference_calls_total",
		Help: "Inference Client calls, by backend and outcome.",
	}, []string{"backend", "outcome"})
)
