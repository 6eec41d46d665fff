// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the admin endpoint.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is the body served by both probes.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     *bool                  `json:"ready,omitempty"`
	Version   string                 `json:"version,omitempty"`
	RunID     string                 `json:"run_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for component checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version string
	runID   string
	now     func() time.Time

	mu       sync.RWMutex
	checkers []Checker
}

// NewManager creates a new check manager
func NewManager(version, runID string) *Manager {
	return &Manager{version: version, runID: runID, now: time.Now}
}

// Register adds a checker to the manager
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

func (m *Manager) run(ctx context.Context) (Status, map[string]CheckResult) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	status := StatusHealthy
	if len(checkers) == 0 {
		return status, nil
	}
	checks := make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		res := c.Check(ctx)
		checks[c.Name()] = res
		switch res.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	return status, checks
}

// Health is the liveness view. The process is alive whenever it can answer,
// so component checks only run when verbose is requested.
func (m *Manager) Health(ctx context.Context, verbose bool) Response {
	resp := Response{
		Status:    StatusHealthy,
		Version:   m.version,
		RunID:     m.runID,
		Timestamp: m.now(),
	}
	if verbose {
		resp.Status, resp.Checks = m.run(ctx)
	}
	return resp
}

// Ready is the readiness view: ready unless a component is unhealthy.
func (m *Manager) Ready(ctx context.Context) Response {
	status, checks := m.run(ctx)
	ready := status != StatusUnhealthy
	return Response{
		Status:    status,
		Ready:     &ready,
		Version:   m.version,
		RunID:     m.runID,
		Timestamp: m.now(),
		Checks:    checks,
	}
}

// ServeHealth handles liveness requests; always 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)
	m.write(w, r, http.StatusOK, resp, "health")
}

// ServeReady handles readiness requests; 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !*resp.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, code, resp, "readiness")
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, code int, resp Response, probe string) {
	logger := log.WithComponentFromContext(r.Context(), probe)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, probe+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str(log.FieldEvent, probe+".checked").
		Str("status", string(resp.Status)).
		Msg("probe served")
}
