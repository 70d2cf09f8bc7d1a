package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	verifyAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_attempts_total",
			Help: "Verification attempts per provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	verifyWorkflowSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verify_workflow_seconds",
			Help:    "Wall time of one provider workflow run.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider"},
	)

	verifyPollLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_poll_lookups_total",
			Help: "Status lookups per result (success, pending, error, transient).",
		},
		[]string{"result"},
	)
)

func IncAttempt(provider, outcome string) {
	verifyAttempts.WithLabelValues(provider, outcome).Inc()
}

func ObserveWorkflow(provider string, d time.Duration) {
	verifyWorkflowSeconds.WithLabelValues(provider).Observe(d.Seconds())
}

func IncPollLookup(result string) {
	verifyPollLookups.WithLabelValues(result).Inc()
}
