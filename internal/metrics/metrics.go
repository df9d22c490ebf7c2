// Package metrics holds the process-wide Prometheus collectors of the audit core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Best-effort step outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	HistoryRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogaudit_history_records_total",
		Help: "History records persisted, by action.",
	}, []string{"action"})

	HistoryWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogaudit_history_write_failures_total",
		Help: "History records that failed to persist.",
	})

	HistoryPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogaudit_history_purged_total",
		Help: "History records removed by entity purges.",
	})

	HistoryQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalogaudit_history_query_duration_seconds",
		Help:    "Duration of history listing queries.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"query_type"})

	RegistryOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogaudit_registry_operations_total",
		Help: "Entity registry operations, by operation and outcome.",
	}, []string{"operation", "outcome"})

	RegistryFallbackNamesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogaudit_registry_fallback_names_total",
		Help: "Name lookups answered with a synthesized fallback.",
	})

	SyncStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogaudit_sync_steps_total",
		Help: "Relationship synchronizer steps, by step and outcome.",
	}, []string{"step", "outcome"})

	LinkViolations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalogaudit_link_violations",
		Help: "Category/family link violations found by the last consistency check.",
	})

	PermissionInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogaudit_permission_invalidations_total",
		Help: "Users whose permission version was incremented, by scope.",
	}, []string{"scope"})
)

// Outcome maps an error to a step outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}
