package tool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "deskmate",
	Name:      "tool_executions_total",
	Help:      "Tool dispatches, by tool name and outcome.",
}, []string{"tool", "outcome"})

func recordExecution(name string, result *Result, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case result != nil && !result.Success:
		outcome = "failed"
	}
	metricExecutions.WithLabelValues(name, outcome).Inc()
}
