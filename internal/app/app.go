// SPDX-License-Identifier: MIT

// Package app is the composition root: it wires catalog, simulators,
// scheduler, sink, admin endpoint and config watcher into one run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/twincitiesguy/pravega-music-demo/internal/admin"
	"github.com/twincitiesguy/pravega-music-demo/internal/catalog"
	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/health"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/metrics"
	"github.com/twincitiesguy/pravega-music-demo/internal/player"
	"github.com/twincitiesguy/pravega-music-demo/internal/playgen"
	"github.com/twincitiesguy/pravega-music-demo/internal/ratelimit"
	"github.com/twincitiesguy/pravega-music-demo/internal/report"
	"github.com/twincitiesguy/pravega-music-demo/internal/resilience"
	"github.com/twincitiesguy/pravega-music-demo/internal/scheduler"
	"github.com/twincitiesguy/pravega-music-demo/internal/sink"
	"github.com/twincitiesguy/pravega-music-demo/internal/telemetry"
)

// Mode names recorded in the run report.
const (
	ModeRun   = "run"
	ModePlays = "plays"
)

// queueBacklogThreshold marks readiness degraded once this many batches wait.
const queueBacklogThreshold = 100

// ErrAlreadyStarted is returned when Run or RunPlays is called twice.
var ErrAlreadyStarted = errors.New("app: already started")

// Options configures an App.
type Options struct {
	Config  config.Config
	Holder  *config.Holder // optional; enables live reload
	Version string
	Stdout  io.Writer
	Now     func() time.Time
}

// App owns one generator run.
type App struct {
	cfg     config.Config
	holder  *config.Holder
	version string
	stdout  io.Writer
	now     func() time.Time

	runID  string
	logger zerolog.Logger

	started  sync.Mutex
	ran      bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an App with a fresh run id.
func New(opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Holder != nil {
		opts.Config = opts.Holder.Get()
	}
	runID := uuid.NewString()
	return &App{
		cfg:     opts.Config,
		holder:  opts.Holder,
		version: opts.Version,
		stdout:  opts.Stdout,
		now:     opts.Now,
		runID:   runID,
		logger: log.Derive(func(c *zerolog.Context) {
			*c = c.Str(log.FieldComponent, "app").Str(log.FieldRunID, runID)
		}),
		stopCh: make(chan struct{}),
	}
}

// RunID identifies this run in logs, the report and sink headers.
func (a *App) RunID() string { return a.runID }

// Stop requests a graceful end: assembly stops and queued events are still
// delivered at their due time. Cancelling the context passed to Run
// additionally interrupts those waits.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.logger.Info().Str(log.FieldEvent, "app.stop_requested").Msg("graceful stop requested")
		close(a.stopCh)
	})
}

func (a *App) begin() error {
	a.started.Lock()
	defer a.started.Unlock()
	if a.ran {
		return ErrAlreadyStarted
	}
	a.ran = true
	return nil
}

// seed resolves the configured seed; zero derives one from the clock.
func (a *App) seed() uint64 {
	if a.cfg.Generator.Seed != 0 {
		return a.cfg.Generator.Seed
	}
	return uint64(a.now().UnixNano())
}

// Run drives the session-event scheduler until stopped, the configured
// run_for elapses, or ctx is cancelled.
func (a *App) Run(ctx context.Context) (err error) {
	if err := a.begin(); err != nil {
		return err
	}
	ctx = log.ContextWithRunID(ctx, a.runID)
	startedAt := a.now()
	seed := a.seed()

	cat, err := catalog.Open(a.cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	tp := a.startTelemetry(ctx)
	defer a.shutdownTelemetry(tp)

	hm := health.NewManager(a.version, a.runID)
	out, err := a.openSink(ctx, hm)
	if err != nil {
		return err
	}
	defer a.closeSink(out)

	throttle := ratelimit.New(a.cfg.Generator.MaxEventsPerSecond)
	if a.holder != nil {
		a.holder.OnReload(func(old, updated config.Config) {
			if old.Generator.MaxEventsPerSecond != updated.Generator.MaxEventsPerSecond {
				throttle.SetRate(updated.Generator.MaxEventsPerSecond)
			}
		})
	}

	sources := make([]scheduler.Source, 0, a.cfg.Generator.Players)
	for i := 1; i <= a.cfg.Generator.Players; i++ {
		id := int64(i)
		sources = append(sources, player.New(id, cat, player.WithRand(player.NewRand(seed, id))))
	}

	sched := scheduler.New(sources, out,
		scheduler.WithHorizon(a.cfg.Generator.Horizon),
		scheduler.WithLimiter(throttle),
		scheduler.WithLogger(log.WithComponentFromContext(ctx, "scheduler")),
		scheduler.WithTracer(telemetry.Tracer("songgen/scheduler")),
	)
	hm.Register(health.NewRunningChecker("scheduler", sched.Running))
	hm.Register(health.NewLagChecker(func() int { return int(metrics.GetDispatchQueueDepth()) }, queueBacklogThreshold))

	a.logger.Info().
		Str(log.FieldEvent, "app.starting").
		Str("mode", ModeRun).
		Uint64(log.FieldSeed, seed).
		Int(log.FieldPlayers, a.cfg.Generator.Players).
		Dur(log.FieldHorizon, a.cfg.Generator.Horizon).
		Str(log.FieldSink, a.cfg.Sink.Type).
		Str(log.FieldStream, a.cfg.Sink.Stream).
		Int("catalog_songs", cat.Len()).
		Msg("starting session event generator")

	runErr := a.supervise(ctx, sched.Run, sched.Stop, hm, func() any { return sched.Stats() })

	st := sched.Stats()
	a.writeReport(ctx, report.Report{
		RunID:        a.runID,
		Mode:         ModeRun,
		Version:      a.version,
		Seed:         seed,
		Sink:         a.cfg.Sink.Type,
		Stream:       a.cfg.Sink.Stream,
		StartedAt:    startedAt,
		EndedAt:      a.now(),
		Listeners:    len(sources),
		EventsByKind: st.Generated,
		Sent:         st.Sent,
		SendFailures: st.SendFailures,
		Dropped:      st.Dropped,
	}, runErr)
	return runErr
}

// RunPlays drives the simple play generator instead of the simulators.
func (a *App) RunPlays(ctx context.Context) error {
	if err := a.begin(); err != nil {
		return err
	}
	ctx = log.ContextWithRunID(ctx, a.runID)
	startedAt := a.now()
	seed := a.seed()

	cat, err := catalog.Open(a.cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	tp := a.startTelemetry(ctx)
	defer a.shutdownTelemetry(tp)

	hm := health.NewManager(a.version, a.runID)
	out, err := a.openSink(ctx, hm)
	if err != nil {
		return err
	}
	defer a.closeSink(out)

	gen := playgen.New(a.cfg.Plays, cat, out,
		playgen.WithRand(player.NewRand(seed, 0)),
		playgen.WithLogger(log.WithComponentFromContext(ctx, "playgen")),
	)
	hm.Register(health.NewRunningChecker("playgen", gen.Running))

	a.logger.Info().
		Str(log.FieldEvent, "app.starting").
		Str("mode", ModePlays).
		Uint64(log.FieldSeed, seed).
		Int("min_xput", a.cfg.Plays.MinXput).
		Int("max_xput", a.cfg.Plays.MaxXput).
		Str(log.FieldSink, a.cfg.Sink.Type).
		Str(log.FieldStream, a.cfg.Sink.Stream).
		Msg("starting play generator")

	runErr := a.supervise(ctx, gen.Run, gen.Stop, hm, func() any { return gen.Stats() })

	st := gen.Stats()
	a.writeReport(ctx, report.Report{
		RunID:        a.runID,
		Mode:         ModePlays,
		Version:      a.version,
		Seed:         seed,
		Sink:         a.cfg.Sink.Type,
		Stream:       a.cfg.Sink.Stream,
		StartedAt:    startedAt,
		EndedAt:      a.now(),
		Plays:        st.Emitted,
		Sent:         st.Emitted,
		SendFailures: st.Failed,
	}, runErr)
	return runErr
}

// supervise runs the generator loop next to the admin server and config
// watcher. The loop gets the caller's ctx so a hard cancel reaches pending
// waits; the helpers stop once the loop returns. A failing helper stops
// the loop gracefully and its error is returned.
func (a *App) supervise(
	ctx context.Context,
	run func(context.Context) error,
	stop func(),
	hm *health.Manager,
	stats admin.StatsFunc,
) error {
	auxCtx, cancelAux := context.WithCancel(ctx)
	defer cancelAux()
	g, gctx := errgroup.WithContext(auxCtx)

	if a.cfg.Generator.RunFor > 0 {
		timer := time.AfterFunc(a.cfg.Generator.RunFor, func() {
			a.logger.Info().
				Str(log.FieldEvent, "app.run_for_elapsed").
				Dur("run_for", a.cfg.Generator.RunFor).
				Msg("configured run time elapsed")
			a.Stop()
		})
		defer timer.Stop()
	}

	g.Go(func() error {
		defer cancelAux()
		return run(ctx)
	})

	g.Go(func() error {
		select {
		case <-a.stopCh:
		case <-gctx.Done():
		}
		stop()
		return nil
	})

	if a.cfg.Admin.Listen != "" {
		srv := admin.New(a.cfg.Admin, hm, stats)
		g.Go(func() error { return srv.Start(gctx) })
	}

	if a.holder != nil {
		g.Go(func() error {
			if err := a.holder.Watch(gctx); err != nil {
				a.logger.Warn().Err(err).
					Str(log.FieldEvent, "config.watcher_start_failed").
					Msg("failed to start config watcher")
			}
			return nil
		})
	}

	return g.Wait()
}

func (a *App) startTelemetry(ctx context.Context) *telemetry.Provider {
	tp, err := telemetry.NewProvider(ctx, a.cfg.Telemetry, a.version)
	if err != nil {
		a.logger.Warn().Err(err).
			Str(log.FieldEvent, "telemetry.init_failed").
			Msg("telemetry initialization failed, continuing without tracing")
		return nil
	}
	if a.cfg.Telemetry.Enabled {
		a.logger.Info().
			Str(log.FieldEvent, "telemetry.initialized").
			Str("endpoint", a.cfg.Telemetry.Endpoint).
			Float64("sampling_rate", a.cfg.Telemetry.SamplingRate).
			Msg("telemetry initialized")
	}
	return tp
}

func (a *App) shutdownTelemetry(tp *telemetry.Provider) {
	if tp == nil {
		return
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		a.logger.Error().Err(err).Str(log.FieldEvent, "telemetry.shutdown_failed").Msg("telemetry shutdown error")
	}
}

// openSink opens the configured sink and registers its readiness checks.
func (a *App) openSink(ctx context.Context, hm *health.Manager) (sink.Sink, error) {
	ready := health.NewFlagChecker("sink", "opened", "not opened")
	hm.Register(ready)

	opts := sink.Options{RunID: a.runID, Logger: log.WithComponentFromContext(ctx, "sink"), Stdout: a.stdout}
	if b := a.cfg.Sink.Breaker; b.Threshold > 0 {
		opts.Breaker = resilience.NewCircuitBreaker(a.cfg.Sink.Type, b.Threshold, b.ResetTimeout)
		hm.Register(health.NewBreakerChecker("sink_breaker", opts.Breaker.State))
	}

	out, err := sink.Open(ctx, a.cfg.Sink, opts)
	if err != nil {
		return nil, err
	}
	ready.Set(true)
	return out, nil
}

func (a *App) closeSink(s sink.Sink) {
	if err := s.Close(); err != nil {
		a.logger.Error().Err(err).Str(log.FieldEvent, "sink.close_failed").Msg("failed to close sink")
	}
}

func (a *App) writeReport(ctx context.Context, r report.Report, runErr error) {
	if a.cfg.Report.Path == "" {
		return
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if err := report.Write(ctx, a.cfg.Report.Path, r); err != nil {
		a.logger.Error().Err(err).
			Str(log.FieldEvent, "report.write_failed").
			Str(log.FieldPath, a.cfg.Report.Path).
			Msg("failed to write run report")
	}
}
