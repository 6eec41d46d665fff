// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the song event generator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Label values kept low-cardinality: no listener ids or song titles.
var (
	// EventsGeneratedTotal counts simulator output by event kind.
	EventsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songgen_events_generated_total",
		Help: "Total number of session events produced by listener simulators, by kind.",
	}, []string{"kind"})

	// LateEventsClampedTotal counts events whose timestamp was pulled forward to now.
	LateEventsClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songgen_late_events_clamped_total",
		Help: "Total number of generated events whose timestamp fell at or before now and was clamped.",
	})

	// BatchesAssembledTotal counts scheduler cycles that produced a non-empty batch.
	BatchesAssembledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songgen_batches_assembled_total",
		Help: "Total number of non-empty batches handed to the dispatcher.",
	})

	// BatchSize observes events per assembled batch.
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "songgen_batch_size",
		Help:    "Number of events per assembled batch.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	// DispatchQueueDepth is the number of batches waiting for the dispatch worker.
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songgen_dispatch_queue_depth",
		Help: "Batches queued for the dispatch worker.",
	})

	// DispatchLagSeconds observes how late each event was handed to the sink.
	DispatchLagSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "songgen_dispatch_lag_seconds",
		Help:    "Delay between an event's timestamp and its hand-off to the sink.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	// SerializationFailuresTotal counts events dropped because they could not be encoded.
	SerializationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songgen_serialization_failures_total",
		Help: "Total number of events dropped on encode failure.",
	})

	// InterruptedWaitsTotal counts dispatch sleeps cut short by shutdown.
	InterruptedWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songgen_interrupted_waits_total",
		Help: "Total number of dispatch waits interrupted before the event was due.",
	})

	// ActiveListeners is the size of the simulator pool.
	ActiveListeners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songgen_active_listeners",
		Help: "Number of simulated listeners in the running scheduler.",
	})
)

// RecordEventGenerated increments the generated counter for kind.
func RecordEventGenerated(kind string) {
	EventsGeneratedTotal.WithLabelValues(kind).Inc()
}

// IncLateEventsClamped records one clamped event.
func IncLateEventsClamped() {
	LateEventsClampedTotal.Inc()
}

// RecordBatch records one assembled batch of n events.
func RecordBatch(n int) {
	BatchesAssembledTotal.Inc()
	BatchSize.Observe(float64(n))
}

// SetDispatchQueueDepth publishes the current dispatch backlog.
func SetDispatchQueueDepth(n int) {
	DispatchQueueDepth.Set(float64(n))
}

// ObserveDispatchLag records the hand-off delay in seconds.
func ObserveDispatchLag(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	DispatchLagSeconds.Observe(seconds)
}

// IncSerializationFailures records one dropped event.
func IncSerializationFailures() {
	SerializationFailuresTotal.Inc()
}

// IncInterruptedWaits records one interrupted dispatch wait.
func IncInterruptedWaits() {
	InterruptedWaitsTotal.Inc()
}

// SetActiveListeners publishes the simulator pool size.
func SetActiveListeners(n int) {
	ActiveListeners.Set(float64(n))
}

// GetDispatchQueueDepth returns the current gauge value.
func GetDispatchQueueDepth() float64 {
	var m dto.Metric
	if err := DispatchQueueDepth.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
