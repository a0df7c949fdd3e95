// Package metrics exposes Prometheus collectors for consolidation activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consolidator"

// Evaluation outcomes of the recurring loop.
const (
	OutcomeWaiting   = "waiting"   // estimate not below target
	OutcomeTriggered = "triggered" // executor ran and succeeded
	OutcomeFailed    = "failed"    // executor ran and failed
	OutcomeError     = "error"     // oracle or argument error
)

// Registry holds every consolidator collector. It is separate from the
// default registry so tests can build servers without global collisions.
var Registry = prometheus.NewRegistry()

var (
	// Evaluations counts recurring-loop evaluations by outcome.
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Recurring job evaluations by outcome.",
	}, []string{"outcome"})

	// Executions counts consolidation attempts by result.
	Executions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "executions_total",
		Help:      "Consolidation attempts by result.",
	}, []string{"result"})

	// CoinsConsolidated counts coins spent by successful consolidations.
	CoinsConsolidated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coins_consolidated_total",
		Help:      "Coins spent by successful consolidations.",
	})

	// JobRunning is 1 while a recurring job holds the running guard.
	JobRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_running",
		Help:      "1 while a consolidate-below job is active.",
	})

	// FeeEstimate is the last sampled trigger estimate in perkb.
	FeeEstimate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fee_estimate_perkb",
		Help:      "Last sampled fee estimate for the trigger confirmation target.",
	})
)

func init() {
	Registry.MustRegister(
		Evaluations,
		Executions,
		CoinsConsolidated,
		JobRunning,
		FeeEstimate,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
