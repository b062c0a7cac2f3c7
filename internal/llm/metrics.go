package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Total LLM streaming requests by status",
	}, []string{"status"})

	metricFirstFragmentMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_first_fragment_ms",
		Help:    "Latency from request start to first streamed fragment",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})

	metricTotalDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_total_duration_ms",
		Help:    "Total LLM streaming time in milliseconds",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})
)
