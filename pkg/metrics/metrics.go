// Package metrics defines the Prometheus instrumentation shared by the
// detection and response tasks. All collectors are registered on the
// default registry and exposed through the API server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsDropped counts raw telemetry records dropped as malformed,
	// per pipeline.
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_records_dropped_total",
		Help: "Raw telemetry records dropped as malformed.",
	}, []string{"pipeline"})

	// EventsEmitted counts security events written to the event store.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_security_events_total",
		Help: "Security events emitted by the policy classifier.",
	}, []string{"pipeline", "severity"})

	// ScoresUnavailable counts subjects that could not be scored because
	// the pipeline model was absent or returned out-of-range output.
	ScoresUnavailable = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_scores_unavailable_total",
		Help: "Subjects left unscored due to model unavailability.",
	}, []string{"pipeline"})

	// ActionsTotal counts action dispatch outcomes.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_actions_total",
		Help: "Playbook action attempts by outcome.",
	}, []string{"action", "outcome"})

	// CycleDuration observes how long each scheduled task run takes.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orion_cycle_duration_seconds",
		Help:    "Duration of scheduled task cycles.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"task"})

	// CyclesSkipped counts cycles skipped because the previous run of the
	// same task was still in flight.
	CyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orion_cycles_skipped_total",
		Help: "Task cycles skipped due to self-exclusion.",
	}, []string{"task"})

	// IOCsLoaded tracks the number of indicators currently held by the
	// threat intel store.
	IOCsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orion_iocs_loaded",
		Help: "Indicators of compromise currently loaded.",
	})
)
