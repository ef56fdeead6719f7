// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OnlineParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pairchat",
		Name:      "online_participants",
		Help:      "Participants with a registered live channel.",
	})

	// outcome: pushed, offline, failed, self
	RelayOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairchat",
		Name:      "relay_total",
		Help:      "Relay attempts by outcome.",
	}, []string{"outcome"})

	// outcome: ok, timeout, unavailable
	AIReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pairchat",
		Name:      "ai_replies_total",
		Help:      "AI reply generations by outcome.",
	}, []string{"outcome"})

	AIReplySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pairchat",
		Name:      "ai_reply_seconds",
		Help:      "Wall-clock time of AI completion calls.",
		Buckets:   prometheus.DefBuckets,
	})
)
