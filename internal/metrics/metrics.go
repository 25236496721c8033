// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts requests served by the status API.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// MessagesReceivedTotal counts messages taken off the queue, including empty ones.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_received_total",
			Help: "Total number of messages removed from the queue.",
		},
		[]string{"queue"},
	)

	// DispatchTotal counts provisioning calls by outcome (success/failed).
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_units_dispatched_total",
			Help: "Total number of compute units submitted to the provisioner.",
		},
		[]string{"status"},
	)

	// CycleErrorsTotal counts dispatch cycles that ended in an error, by kind.
	CycleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_cycle_errors_total",
			Help: "Total number of dispatch cycles abandoned because of an error.",
		},
		[]string{"kind"},
	)

	// ProvisionDuration observes how long the create-or-update call takes to be accepted.
	ProvisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_provision_duration_seconds",
			Help:    "Latency of the create-or-update call.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LoopState is 1 for the state the dispatch loop is currently in, 0 otherwise.
	LoopState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatcher_loop_state",
			Help: "Current dispatch loop state. 1 for the active state, 0 otherwise.",
		},
		[]string{"state"},
	)
)
