// SPDX-License-Identifier: MIT

// Package scheduler multiplexes many listener simulators into one
// time-ordered stream. Each cycle pulls every event due within the horizon,
// sorts the batch by timestamp and hands it to a single dispatch worker that
// releases events to the sink at their due instant.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

// DefaultHorizon is how far ahead each cycle looks.
const DefaultHorizon = 5 * time.Second

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Source yields a non-decreasing sequence of events. Peek must be
// idempotent until Consume.
type Source interface {
	Peek() songevent.Event
	Consume() songevent.Event
}

// Sink receives payloads sequentially from the dispatch worker.
type Sink interface {
	Send(ctx context.Context, routingKey string, payload []byte) error
}

// Limiter paces sends; ratelimit.Throttle satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Scheduler owns the sources and the sink for the lifetime of a run.
type Scheduler struct {
	sources  []Source
	sink     Sink
	horizon  time.Duration
	interval time.Duration
	now      func() time.Time
	encode   songevent.Encoder
	limiter  Limiter
	logger   zerolog.Logger
	tracer   trace.Tracer

	running atomic.Bool
	started atomic.Bool
	stopCh  chan struct{}
	stop    sync.Once

	stats Stats
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithHorizon sets the look-ahead window; the cycle interval is a fifth of it.
func WithHorizon(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.horizon = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithEncoder overrides the payload encoder.
func WithEncoder(enc songevent.Encoder) Option {
	return func(s *Scheduler) { s.encode = enc }
}

// WithLimiter paces sends through l.
func WithLimiter(l Limiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithTracer sets the tracer used for per-batch spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// New creates a scheduler over sources that delivers to sink.
func New(sources []Source, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sources: sources,
		sink:    sink,
		horizon: DefaultHorizon,
		now:     time.Now,
		encode:  songevent.Marshal,
		logger:  log.WithComponent("scheduler"),
		tracer:  otel.Tracer("songgen/scheduler"),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.interval = s.horizon / 5
	return s
}

// Horizon returns the look-ahead window.
func (s *Scheduler) Horizon() time.Duration { return s.horizon }

// Running reports whether batch assembly is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Stats returns a snapshot of the run counters.
func (s *Scheduler) Stats() StatsSnapshot { return s.stats.snapshot() }

// Run assembles batches until Stop is called or ctx is cancelled, then
// waits for the dispatch worker to drain. Stop lets queued events go out at
// their due time; cancelling ctx interrupts pending waits so the remaining
// events are sent immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.running.Store(true)
	metrics.SetActiveListeners(len(s.sources))

	d := newDispatcher(s)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.run(ctx)
	}()

	s.logger.Info().
		Int(log.FieldPlayers, len(s.sources)).
		Dur(log.FieldHorizon, s.horizon).
		Str(log.FieldEvent, "scheduler.started").
		Msg("scheduler started")

	for s.active() {
		batch := s.collect(s.now().UnixMilli())
		if len(batch) > 0 {
			metrics.RecordBatch(len(batch))
			d.submit(batch)
		}

		t := time.NewTimer(s.interval)
		select {
		case <-t.C:
		case <-s.stopCh:
		case <-ctx.Done():
			s.running.Store(false)
		}
		t.Stop()
	}

	s.logger.Info().
		Int(log.FieldQueueDepth, d.depth()).
		Str(log.FieldEvent, "scheduler.draining").
		Msg("batch assembly stopped, draining dispatch queue")

	d.close()
	<-done
	metrics.SetActiveListeners(0)

	s.logger.Info().
		Int64("sent", s.stats.sent.Load()).
		Int64("send_failures", s.stats.failed.Load()).
		Str(log.FieldEvent, "scheduler.stopped").
		Msg("scheduler stopped")
	return nil
}

// active reports whether another cycle should run.
func (s *Scheduler) active() bool {
	select {
	case <-s.stopCh:
		s.running.Store(false)
		return false
	default:
		return s.running.Load()
	}
}

// Stop halts batch assembly. Batches already handed to the dispatcher are
// still delivered. Safe to call more than once and before Run.
func (s *Scheduler) Stop() {
	s.running.Store(false)
	s.stop.Do(func() { close(s.stopCh) })
}

// collect pulls every event due before now+horizon from every source and
// returns them in ascending timestamp order. Equal timestamps keep source
// order.
func (s *Scheduler) collect(nowMs int64) []songevent.Event {
	horizonMs := s.horizon.Milliseconds()
	var batch []songevent.Event
	for _, src := range s.sources {
		for src.Peek().Timestamp-nowMs < horizonMs {
			e := src.Consume()
			s.stats.recordGenerated(e.Kind)
			batch = append(batch, e)
		}
	}
	slices.SortStableFunc(batch, func(a, b songevent.Event) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return batch
}
