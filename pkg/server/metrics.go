package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskmate",
		Name:      "chat_turns_total",
		Help:      "Completed conversation turns, by whether tools ran.",
	}, []string{"tool_used"})

	metricStoreEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskmate",
		Name:      "store_events_total",
		Help:      "Ticket store events observed on the bus, by subject.",
	}, []string{"subject"})

	metricUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskmate",
		Name:      "uploads_total",
		Help:      "File uploads forwarded to the gateway, by outcome.",
	}, []string{"outcome"})

	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "deskmate",
		Name:      "sessions_active_total",
		Help:      "Number of live chat sessions.",
	})
)
