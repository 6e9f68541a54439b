package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UsageEventsRecorded counts successfully persisted usage events
	UsageEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbackend_usage_events_recorded_total",
		Help: "Number of usage events recorded, by provider.",
	}, []string{"provider"})

	// UsageRecordsRejected counts rejected record attempts by reason
	UsageRecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meterbackend_usage_records_rejected_total",
		Help: "Number of rejected usage record attempts, by reason.",
	}, []string{"reason"})

	// BudgetAlertsSent counts dispatched budget alerts
	BudgetAlertsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meterbackend_budget_alerts_sent_total",
		Help: "Number of budget alerts dispatched.",
	})

	// BudgetAlertsSuppressed counts alerts suppressed by the cooldown
	BudgetAlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meterbackend_budget_alerts_suppressed_total",
		Help: "Number of budget alerts suppressed by the 24h cooldown.",
	})

	// BudgetChecksFailed counts budget checks that errored
	BudgetChecksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meterbackend_budget_checks_failed_total",
		Help: "Number of budget checks that failed.",
	})
)
