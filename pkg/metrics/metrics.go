// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fern"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeDropped = "dropped"
	OutcomeError   = "error"
)

var (
	// NotificationsTotal tracks reconciled notifications by scope, transition and outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "processed_total",
			Help:      "Total number of diagnostic settings notifications processed",
		},
		[]string{"scope", "transition", "outcome"},
	)

	// NotificationDuration tracks reconciliation duration in seconds
	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "duration_seconds",
			Help:      "Duration of diagnostic settings reconciliation in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"scope"},
	)

	// RestoresTotal tracks attempts to restore platform managed diagnostic settings
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "restores_total",
			Help:      "Total number of platform managed diagnostic settings restores",
		},
		[]string{"scope", "outcome"},
	)

	// EntityWritesTotal tracks relationship and status writes
	EntityWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "entity_writes_total",
			Help:      "Total number of monitoring entity writes by kind, action and outcome",
		},
		[]string{"kind", "action", "outcome"},
	)

	// AzureCallsTotal tracks diagnostic settings API calls
	AzureCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "azure",
			Name:      "diagnostic_settings_calls_total",
			Help:      "Total number of Azure diagnostic settings API calls",
		},
		[]string{"operation", "outcome"},
	)

	// MessagesConsumedTotal tracks ARN messages read from Kafka
	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of ARN messages consumed",
		},
		[]string{"topic", "outcome"},
	)

	// DeadLettersTotal tracks messages published to the dead letter topic
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "dead_letters_total",
			Help:      "Total number of messages sent to the dead letter topic",
		},
		[]string{"reason"},
	)
)

// Outcome maps an error to a success or error label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
