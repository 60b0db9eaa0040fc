package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskmate",
		Name:      "gateway_write_failures_total",
		Help:      "Write actions that failed at the transport level, by action.",
	}, []string{"action"})

	metricReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deskmate",
		Name:      "gateway_reads_total",
		Help:      "Snapshot reads against the gateway, by outcome.",
	}, []string{"outcome"})
)

func recordWriteFailure(action string) {
	metricWriteFailures.WithLabelValues(action).Inc()
}

func recordRead(outcome string) {
	metricReads.WithLabelValues(outcome).Inc()
}
