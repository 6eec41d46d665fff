// SPDX-License-Identifier: MIT

// Package admin serves the operational HTTP endpoints of a generator run:
// Prometheus metrics, liveness/readiness probes and a stats snapshot.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/health"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// StatsFunc returns a JSON-encodable snapshot of the running generator.
type StatsFunc func() any

// Server is the admin HTTP endpoint.
type Server struct {
	cfg    config.AdminConfig
	health *health.Manager
	stats  StatsFunc
	logger zerolog.Logger
	router chi.Router
}

// New builds the router. stats may be nil.
func New(cfg config.AdminConfig, hm *health.Manager, stats StatsFunc) *Server {
	s := &Server{
		cfg:    cfg,
		health: hm,
		stats:  stats,
		logger: log.WithComponent("admin"),
	}
	s.router = s.routes()
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if s.cfg.RequestsPerMinute > 0 {
		r.Use(rateLimit(s.cfg.RequestsPerMinute, time.Minute))
	}
	r.Use(traced)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", s.serveStats)
	return r
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		s.logger.Error().Err(err).Str(log.FieldEvent, "admin.stats_encode_failed").Msg("failed to encode stats")
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("admin: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str(log.FieldEvent, "admin.listening").
			Str("addr", ln.Addr().String()).
			Msg("admin server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin: serve: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Str(log.FieldEvent, "admin.shutdown_failed").Msg("admin server shutdown error")
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	s.logger.Info().Str(log.FieldEvent, "admin.stopped").Msg("admin server stopped")
	return nil
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	)
}

// traced wraps requests in a server span. Probe and scrape traffic is skipped.
func traced(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "songgen-admin",
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				return false
			}
			return true
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}
