package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tomlord1122/todo-widget/internal/api"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_requests_total",
			Help: "Todo widget requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todo_request_duration_seconds",
			Help:    "Todo widget request latency by action",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
}

func observeRequest(action api.Action, outcome string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(string(action), outcome).Inc()
	requestDuration.WithLabelValues(string(action)).Observe(elapsed.Seconds())
}
