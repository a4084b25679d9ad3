package advisor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	externalFailures *prometheus.CounterVec
	weightClamps     *prometheus.CounterVec
	etaLookups       *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	suggestedTargets prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Histogram) {
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_external_query_failures_total",
			Help: "External calls resolved to a fallback",
		},
		[]string{"call", "kind"},
	)
	clamp := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_weight_clamps_total",
			Help: "Factor values above the highest weight level",
		},
		[]string{"factor"},
	)
	eta := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_eta_lookups_total",
			Help: "Arrival time lookups by outcome",
		},
		[]string{"result"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_stage_duration_seconds",
			Help:    "Duration of suggestion, blend and ranking stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	targets := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advisor_suggested_targets",
			Help:    "Number of targets returned per suggestion",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)
	return fail, clamp, eta, dur, targets
}

func init() {
	externalFailures, weightClamps, etaLookups, stageDuration, suggestedTargets = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers advisor metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(externalFailures, weightClamps, etaLookups, stageDuration, suggestedTargets)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	externalFailures, weightClamps, etaLookups, stageDuration, suggestedTargets = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
