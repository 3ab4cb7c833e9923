package conversation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_updates_total",
			Help: "Inbound updates by dispatch outcome",
		},
		[]string{"outcome"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversation_dispatch_duration_seconds",
			Help:    "Time spent dispatching a single update",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"outcome"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_transitions_total",
			Help: "State transitions per flow",
		},
		[]string{"flow", "from", "to"},
	)

	// SessionsExpired counts sessions dropped by the idle sweep.
	SessionsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_sessions_expired_total",
			Help: "Sessions evicted after the idle timeout",
		},
		[]string{"flow"},
	)
)
