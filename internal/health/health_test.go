// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twincitiesguy/pravega-music-demo/internal/resilience"
)

func TestManagerWithoutCheckersIsReady(t *testing.T) {
	m := NewManager("v1", "run-1")
	resp := m.Ready(context.Background())
	require.NotNil(t, resp.Ready)
	assert.True(t, *resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
}

func TestReadyReflectsCheckers(t *testing.T) {
	m := NewManager("v1", "run-1")
	sinkFlag := NewFlagChecker("sink", "opened", "not opened")
	running := false
	m.Register(sinkFlag)
	m.Register(NewRunningChecker("scheduler", func() bool { return running }))

	resp := m.Ready(context.Background())
	assert.False(t, *resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "not opened", resp.Checks["sink"].Message)

	sinkFlag.Set(true)
	running = true
	resp = m.Ready(context.Background())
	assert.True(t, *resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestDegradedStaysReady(t *testing.T) {
	m := NewManager("v1", "run-1")
	m.Register(NewLagChecker(func() int { return 500 }, 100))

	resp := m.Ready(context.Background())
	assert.True(t, *resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestBreakerCheckerDegrades(t *testing.T) {
	state := resilience.StateClosed
	c := NewBreakerChecker("sink_breaker", func() resilience.State { return state })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	state = resilience.StateOpen
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "circuit open", res.Message)
}

func TestHealthSkipsChecksUnlessVerbose(t *testing.T) {
	m := NewManager("v1", "run-1")
	m.Register(NewFlagChecker("sink", "opened", "not opened"))

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "sink")
}

func TestServeHandlers(t *testing.T) {
	m := NewManager("v1", "run-1")
	flag := NewFlagChecker("sink", "opened", "not opened")
	m.Register(flag)

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)

	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":false`)

	flag.Set(true)
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}
