// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink send outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// SinkSendsTotal counts sink hand-offs by backend and outcome.
	SinkSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songgen_sink_sends_total",
		Help: "Total number of payloads handed to a sink, by sink type and outcome.",
	}, []string{"sink", "outcome"})

	// SinkSendDuration observes per-send latency by backend.
	SinkSendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "songgen_sink_send_duration_seconds",
		Help:    "Latency of a single sink send.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
)

// RecordSinkSend records a send outcome and its latency.
func RecordSinkSend(sink string, err error, seconds float64) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	SinkSendsTotal.WithLabelValues(sink, outcome).Inc()
	SinkSendDuration.WithLabelValues(sink).Observe(seconds)
}

// SinkDeliveryFailuresTotal counts payloads a sink accepted but later failed
// to deliver (asynchronous backends only).
var SinkDeliveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "songgen_sink_delivery_failures_total",
	Help: "Total number of accepted payloads whose asynchronous delivery failed, by sink type.",
}, []string{"sink"})

// AddSinkDeliveryFailures records n failed asynchronous deliveries.
func AddSinkDeliveryFailures(sink string, n int) {
	SinkDeliveryFailuresTotal.WithLabelValues(sink).Add(float64(n))
}
