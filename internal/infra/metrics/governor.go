package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	governorCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "governor_pool_capacity",
			Help: "Current permit capacity per provider pool.",
		},
		[]string{"provider"},
	)

	governorInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "governor_pool_in_flight",
			Help: "Permits currently held per provider pool.",
		},
		[]string{"provider"},
	)

	governorRetunes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governor_retunes_total",
			Help: "Retune events by direction (shrink, grow).",
		},
		[]string{"direction"},
	)
)

func SetPoolCapacity(provider string, capacity int64) {
	governorCapacity.WithLabelValues(provider).Set(float64(capacity))
}

func AddInFlight(provider string, delta float64) {
	governorInFlight.WithLabelValues(provider).Add(delta)
}

func IncRetune(direction string) {
	governorRetunes.WithLabelValues(direction).Inc()
}
