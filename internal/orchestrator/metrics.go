package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_state_transitions_total",
		Help: "Orchestrator state transitions",
	}, []string{"from", "to"})

	metricTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orch_turns_total",
		Help: "Processed utterance turns by outcome",
	}, []string{"status"})

	metricTurnDurationMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orch_turn_duration_ms",
		Help:    "Wall time of one utterance turn up to reply commit",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})
)
