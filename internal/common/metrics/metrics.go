package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PassesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_passes_completed_total",
			Help: "Total number of matching passes that reached the persisted state",
		},
		[]string{"order_type"},
	)

	PassesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_passes_failed_total",
			Help: "Total number of matching passes halted before persisting",
		},
		[]string{"order_type", "state", "error_code"},
	)

	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "matching_pass_duration_seconds",
			Help: "Duration of a full matching pass in seconds",
		},
		[]string{"order_type"},
	)

	PassesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matching_passes_active",
			Help: "Number of matching passes currently running",
		},
		[]string{"order_type"},
	)

	ScorerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_scorer_failures_total",
			Help: "Total number of per-pair similarity scorer failures",
		},
		[]string{"modality"},
	)

	TriggersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_triggers_dropped_total",
			Help: "Total number of matching triggers dropped due to a full queue",
		},
	)
)
