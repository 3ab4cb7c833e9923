package sender

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_outbound_total",
			Help: "Outbound Telegram API calls by action and result",
		},
		[]string{"action", "result"},
	)

	outboundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telegram_outbound_duration_seconds",
			Help:    "Time spent delivering an outbound call, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)
