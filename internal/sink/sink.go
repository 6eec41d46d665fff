// SPDX-License-Identifier: MIT

// Package sink delivers encoded events to an ingestion destination.
// Backends provision their destination when opened; a send failure is
// reported to the caller but never retried.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
	"github.com/twincitiesguy/pravega-music-demo/internal/resilience"
)

var (
	// ErrUnknownType is returned by Open for an unsupported sink.type.
	ErrUnknownType = errors.New("unknown sink type")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("sink closed")
)

// Sink receives payloads in dispatch order. Implementations need not be
// safe for concurrent Send calls; the dispatcher sends sequentially.
type Sink interface {
	Send(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// Options carries process-level values shared by all backends.
type Options struct {
	RunID  string
	Logger zerolog.Logger
	Stdout io.Writer
	// Breaker, when set, fails sends fast while the backend keeps erroring.
	Breaker *resilience.CircuitBreaker
}

// Open creates and provisions the sink selected by cfg.Type. The returned
// sink records every send in songgen_sink_sends_total.
func Open(ctx context.Context, cfg config.SinkConfig, opts Options) (Sink, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	logger := opts.Logger.With().
		Str(log.FieldSink, cfg.Type).
		Str(log.FieldStream, cfg.Stream).
		Logger()

	var (
		s   Sink
		err error
	)
	switch cfg.Type {
	case config.SinkKafka:
		s, err = NewKafka(ctx, cfg.Stream, cfg.Kafka, opts.RunID, logger)
	case config.SinkRedis:
		s, err = NewRedis(ctx, cfg.Stream, cfg.Redis, logger)
	case config.SinkPostgres:
		s, err = NewPostgres(ctx, cfg.Postgres, logger)
	case config.SinkSQLite:
		s, err = NewSQLite(ctx, cfg.Stream, cfg.SQLite, logger)
	case config.SinkBadger:
		s, err = NewBadger(cfg.Stream, cfg.Badger, logger)
	case config.SinkStdout:
		s = NewWriter(opts.Stdout)
	case config.SinkDiscard:
		s = NewDiscard()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s sink: %w", cfg.Type, err)
	}

	if opts.Breaker != nil {
		s = &guarded{inner: s, breaker: opts.Breaker}
	}

	logger.Info().Str(log.FieldEvent, "sink.opened").Msg("sink ready")
	return Instrument(cfg.Type, s), nil
}

// Instrument wraps s so every send is counted and timed under name.
func Instrument(name string, s Sink) Sink {
	return &instrumented{name: name, inner: s}
}

type instrumented struct {
	name  string
	inner Sink
}

func (i *instrumented) Send(ctx context.Context, routingKey string, payload []byte) error {
	start := time.Now()
	err := i.inner.Send(ctx, routingKey, payload)
	metrics.RecordSinkSend(i.name, err, time.Since(start).Seconds())
	return err
}

func (i *instrumented) Close() error {
	return i.inner.Close()
}

// guarded routes sends through a circuit breaker. Open-circuit rejections
// surface as send failures.
type guarded struct {
	inner   Sink
	breaker *resilience.CircuitBreaker
}

func (g *guarded) Send(ctx context.Context, routingKey string, payload []byte) error {
	return g.breaker.Execute(func() error {
		return g.inner.Send(ctx, routingKey, payload)
	})
}

func (g *guarded) Close() error { return g.inner.Close() }

func (g *guarded) Unwrap() Sink { return g.inner }

// Unwrap returns the backend behind the instrumentation.
func (i *instrumented) Unwrap() Sink {
	return i.inner
}
