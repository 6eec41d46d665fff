// SPDX-License-Identifier: MIT

// Package playgen emits simple random "song played" records at a
// throughput that wanders between a configured minimum and maximum.
package playgen

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/catalog"
	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
	"github.com/twincitiesguy/pravega-music-demo/internal/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxPlayerID bounds the random player ids, 1..MaxPlayerID inclusive.
const MaxPlayerID = 10000

// Play is one emitted record.
type Play struct {
	PlayerID string `json:"playerId"`
	Song     string `json:"song"`
	Artist   string `json:"artist"`
}

// Sink receives encoded plays keyed by player id.
type Sink interface {
	Send(ctx context.Context, routingKey string, payload []byte) error
}

// Stats counts what a generator has emitted.
type Stats struct {
	Emitted int64 `json:"emitted"`
	Failed  int64 `json:"failed"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithLogger sets the generator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithClock replaces time.Now for throughput interval bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// Generator produces plays until stopped.
type Generator struct {
	min, max int
	interval time.Duration

	catalog  *catalog.Catalog
	sink     Sink
	throttle *ratelimit.Throttle
	rng      *rand.Rand
	now      func() time.Time
	logger   zerolog.Logger

	xput       atomic.Int64
	lastChange time.Time

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	emitted atomic.Int64
	failed  atomic.Int64
}

// New creates a generator and draws its initial throughput.
func New(cfg config.PlaysConfig, cat *catalog.Catalog, s Sink, opts ...Option) *Generator {
	g := &Generator{
		min:      cfg.MinXput,
		max:      cfg.MaxXput,
		interval: cfg.XputInterval,
		catalog:  cat,
		sink:     s,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:      time.Now,
		logger:   log.WithComponent("playgen"),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	xput := g.randomizeXput()
	g.xput.Store(int64(xput))
	g.lastChange = g.now()
	g.throttle = ratelimit.New(float64(xput), ratelimit.WithoutBurst())
	metrics.SetPlaysThroughput(xput)
	return g
}

// Throughput is the current target plays per second.
func (g *Generator) Throughput() int { return int(g.xput.Load()) }

// Running reports whether Run is active.
func (g *Generator) Running() bool { return g.running.Load() }

// Stats returns the emitted and failed counts.
func (g *Generator) Stats() Stats {
	return Stats{Emitted: g.emitted.Load(), Failed: g.failed.Load()}
}

// Next draws one play.
func (g *Generator) Next() Play {
	id := g.rng.IntN(MaxPlayerID) + 1
	song := g.catalog.RandomSong(g.rng)
	return Play{
		PlayerID: strconv.Itoa(id),
		Song:     song.Title,
		Artist:   song.Artist,
	}
}

// Run emits plays until Stop is called or ctx is done. Send failures are
// counted and logged; they do not end the run.
func (g *Generator) Run(ctx context.Context) error {
	g.running.Store(true)
	defer g.running.Store(false)

	g.logger.Info().
		Str(log.FieldEvent, "plays.started").
		Int("xput", g.Throughput()).
		Dur("xput_interval", g.interval).
		Msg("play generator started")

	for {
		select {
		case <-g.stopCh:
			g.logStopped()
			return nil
		case <-ctx.Done():
			g.logStopped()
			return nil
		default:
		}

		g.emit(ctx)
		g.verifyXput()

		if err := g.throttle.Wait(ctx); err != nil {
			g.logStopped()
			return nil
		}
	}
}

func (g *Generator) emit(ctx context.Context) {
	play := g.Next()
	payload, err := json.Marshal(play)
	if err != nil {
		g.failed.Add(1)
		metrics.IncSerializationFailures()
		return
	}

	g.logger.Debug().
		Str(log.FieldEvent, "plays.write").
		Str(log.FieldRoutingKey, play.PlayerID).
		Int(log.FieldSize, len(payload)).
		Msg("writing message")

	if err := g.sink.Send(ctx, play.PlayerID, payload); err != nil {
		g.failed.Add(1)
		g.logger.Error().Err(err).
			Str(log.FieldEvent, "plays.send_failed").
			Str(log.FieldRoutingKey, play.PlayerID).
			Msg("failed to send play")
		return
	}
	g.emitted.Add(1)
	metrics.IncPlaysEmitted()
}

// verifyXput re-draws the throughput once the interval has elapsed.
func (g *Generator) verifyXput() {
	now := g.now()
	if now.Sub(g.lastChange) <= g.interval {
		return
	}
	xput := g.randomizeXput()
	g.xput.Store(int64(xput))
	g.lastChange = now
	g.throttle.SetRate(float64(xput))
	metrics.SetPlaysThroughput(xput)

	g.logger.Info().
		Str(log.FieldEvent, "plays.xput_changed").
		Int("xput", xput).
		Msg("throughput changed")
}

// randomizeXput draws uniformly from [min, max); min == max pins it.
func (g *Generator) randomizeXput() int {
	if g.max > g.min {
		return g.rng.IntN(g.max-g.min) + g.min
	}
	return g.min
}

// Stop ends Run after the current play.
func (g *Generator) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

func (g *Generator) logStopped() {
	g.logger.Info().
		Str(log.FieldEvent, "plays.stopped").
		Int64("emitted", g.emitted.Load()).
		Int64("failed", g.failed.Load()).
		Msg("play generator stopped")
}
