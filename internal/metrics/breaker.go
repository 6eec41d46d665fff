// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var breakerStates = []string{"closed", "open", "half-open"}

var (
	// SinkBreakerState is 1 for the current state of each sink breaker.
	SinkBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "songgen_sink_breaker_state",
		Help: "Circuit breaker state per sink (1 = current state).",
	}, []string{"sink", "state"})

	// SinkBreakerTripsTotal counts transitions into the open state.
	SinkBreakerTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songgen_sink_breaker_trips_total",
		Help: "Total number of sink circuit breaker trips, by reason.",
	}, []string{"sink", "reason"})
)

// SetSinkBreakerState marks state as current for the named breaker.
func SetSinkBreakerState(sink, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		SinkBreakerState.WithLabelValues(sink, s).Set(v)
	}
}

// RecordSinkBreakerTrip records one trip.
func RecordSinkBreakerTrip(sink, reason string) {
	SinkBreakerTripsTotal.WithLabelValues(sink, reason).Inc()
}
