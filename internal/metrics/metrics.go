// Package metrics exposes the dashboard's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts chaos runs by scenario and outcome
	// (success, failed, simulated).
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaosdojo",
		Name:      "runs_total",
		Help:      "Chaos scenario executions by outcome.",
	}, []string{"scenario", "outcome"})

	// ProbesTotal counts cluster reachability probes by result cause.
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chaosdojo",
		Name:      "probes_total",
		Help:      "Cluster reachability probes by cause.",
	}, []string{"result"})

	// NarrationSeconds observes LLM narration round-trip latency.
	NarrationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chaosdojo",
		Name:      "narration_seconds",
		Help:      "LLM narration request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// UncordonsPending gauges cordoned nodes awaiting their scheduled uncordon.
	UncordonsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chaosdojo",
		Name:      "uncordons_pending",
		Help:      "Nodes cordoned by a scenario and not yet uncordoned.",
	})
)

// Outcome labels for RunsTotal.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeSimulated = "simulated"
)

// ProbeResult converts a reachability cause into a metric label. Empty cause
// means reachable.
func ProbeResult(cause string) string {
	if cause == "" {
		return "reachable"
	}
	return cause
}
