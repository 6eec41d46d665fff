// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaysThroughput is the play generator's current target rate.
	PlaysThroughput = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songgen_plays_throughput",
		Help: "Current target plays per second of the play generator.",
	})

	// PlaysEmittedTotal counts play records handed to the sink.
	PlaysEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songgen_plays_emitted_total",
		Help: "Total number of play records emitted.",
	})

	// ThrottleRate is the configured dispatch cap; 0 means unlimited.
	ThrottleRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songgen_throttle_events_per_second",
		Help: "Configured dispatch rate cap in events per second (0 = unlimited).",
	})
)

// SetPlaysThroughput publishes the play generator's current rate.
func SetPlaysThroughput(perSecond int) {
	PlaysThroughput.Set(float64(perSecond))
}

// IncPlaysEmitted records one emitted play.
func IncPlaysEmitted() {
	PlaysEmittedTotal.Inc()
}

// SetThrottleRate publishes the dispatch cap.
func SetThrottleRate(perSecond float64) {
	ThrottleRate.Set(perSecond)
}
