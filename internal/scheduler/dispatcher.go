// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

// minWait is the shortest delay worth sleeping for.
const minWait = 5 * time.Millisecond

// dispatcher is the single worker that sends batches in submission order.
// The queue is unbounded: a slow sink makes batches pile up rather than
// blocking assembly.
type dispatcher struct {
	s *Scheduler

	mu     sync.Mutex
	queue  [][]songevent.Event
	closed bool
	wake   chan struct{}
}

func newDispatcher(s *Scheduler) *dispatcher {
	return &dispatcher{s: s, wake: make(chan struct{}, 1)}
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// submit enqueues a batch without waiting for it to be sent.
func (d *dispatcher) submit(batch []songevent.Event) {
	d.mu.Lock()
	d.queue = append(d.queue, batch)
	n := len(d.queue)
	d.mu.Unlock()
	metrics.SetDispatchQueueDepth(n)
	d.signal()
}

// close lets the worker exit once the queue is empty.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// next blocks until a batch is available or the queue is closed and empty.
func (d *dispatcher) next() ([]songevent.Event, bool) {
	for {
		d.mu.Lock()
		if len(d.queue) > 0 {
			batch := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			n := len(d.queue)
			d.mu.Unlock()
			metrics.SetDispatchQueueDepth(n)
			return batch, true
		}
		if d.closed {
			d.mu.Unlock()
			return nil, false
		}
		d.mu.Unlock()
		<-d.wake
	}
}

func (d *dispatcher) run(ctx context.Context) {
	for {
		batch, ok := d.next()
		if !ok {
			return
		}
		d.dispatch(ctx, batch)
	}
}

// dispatch sends one batch. ctx only interrupts waits: sends use a context
// detached from cancellation so a drain still delivers everything.
func (d *dispatcher) dispatch(ctx context.Context, batch []songevent.Event) {
	s := d.s
	_, span := s.tracer.Start(ctx, "dispatch.batch")
	span.SetAttributes(attribute.Int("batch.size", len(batch)))
	defer span.End()

	sendCtx := context.WithoutCancel(ctx)
	for _, e := range batch {
		due := time.UnixMilli(e.Timestamp)
		if wait := due.Sub(s.now()); wait > minWait {
			if !sleep(ctx, wait) {
				metrics.IncInterruptedWaits()
				s.logger.Warn().
					Int64(log.FieldListenerID, e.ListenerID).
					Dur("remaining", wait).
					Str(log.FieldEvent, "dispatch.wait_interrupted").
					Msg("wait interrupted, sending immediately")
			}
		}

		payload, err := s.encode(e)
		if err != nil {
			metrics.IncSerializationFailures()
			s.stats.dropped.Add(1)
			s.logger.Error().
				Err(err).
				Int64(log.FieldListenerID, e.ListenerID).
				Str(log.FieldEventKind, string(e.Kind)).
				Str(log.FieldEvent, "dispatch.encode_failed").
				Msg("dropping event that failed to serialize")
			continue
		}

		if s.limiter != nil {
			// A cancelled ctx means drain now; stop pacing.
			_ = s.limiter.Wait(ctx)
		}

		key := e.RoutingKey()
		s.logger.Debug().
			Str(log.FieldRoutingKey, key).
			Int(log.FieldSize, len(payload)).
			Int64(log.FieldTimestamp, e.Timestamp).
			Str(log.FieldEvent, "dispatch.write").
			Msg("writing message")
		s.logger.Trace().
			RawJSON(log.FieldPayload, payload).
			Msg("raw event")

		metrics.ObserveDispatchLag(s.now().Sub(due).Seconds())
		if err := s.sink.Send(sendCtx, key, payload); err != nil {
			s.stats.failed.Add(1)
			s.logger.Error().
				Err(err).
				Str(log.FieldRoutingKey, key).
				Str(log.FieldEvent, "dispatch.send_failed").
				Msg("sink send failed")
			continue
		}
		s.stats.sent.Add(1)
	}
}

// sleep waits for d and reports whether it ran to completion.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
