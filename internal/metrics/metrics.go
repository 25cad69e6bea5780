// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace prefixes every collector exported by the service.
	Namespace = "hive_explorer"

	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeCanceled    = "canceled"
)

var (
	keychainRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "keychain_requests_total",
			Help:      "signing requests issued to the keychain provider",
		},
		[]string{"operation", "outcome"},
	)
	flowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_transitions_total",
			Help:      "action state transitions observed by flow controllers",
		},
		[]string{"action", "state"},
	)
	chainReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "chain_reads_total",
			Help:      "read requests served from the hive api",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		keychainRequests,
		flowTransitions,
		chainReads,
	)
}

// KeychainRequest counts one completed bridge request.
func KeychainRequest(operation, outcome string) {
	keychainRequests.WithLabelValues(operation, outcome).Inc()
}

// FlowTransition counts an action entering state.
func FlowTransition(action, state string) {
	flowTransitions.WithLabelValues(action, state).Inc()
}

// ChainRead counts one read request against the hive api.
func ChainRead(operation, outcome string) {
	chainReads.WithLabelValues(operation, outcome).Inc()
}
