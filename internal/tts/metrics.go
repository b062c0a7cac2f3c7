package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricSynthesis = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tts_synthesis_units_total",
	Help: "Total TTS playback units by status",
}, []string{"status"})
