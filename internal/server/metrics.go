package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transitionsTotal counts protocol transitions by operation and outcome.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spleety_transitions_total",
		Help: "Protocol transitions by operation and outcome.",
	}, []string{"op", "outcome"})

	// requestDuration tracks HTTP request latency.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spleety_request_duration_seconds",
		Help:    "HTTP request duration by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// observeTransition records one transition outcome.
func observeTransition(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	transitionsTotal.WithLabelValues(op, outcome).Inc()
}
