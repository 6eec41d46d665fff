// SPDX-License-Identifier: MIT

package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/report"
	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

// syncBuffer guards the stdout sink output for reads from the test goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := strings.TrimSpace(b.buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Generator.Players = 1000
	cfg.Generator.Horizon = 250 * time.Millisecond
	cfg.Generator.Seed = 99
	cfg.Generator.RunFor = time.Second
	cfg.Sink.Type = config.SinkStdout
	cfg.Report.Path = filepath.Join(t.TempDir(), "report.json")
	return cfg
}

func TestRunWritesEventsAndReport(t *testing.T) {
	cfg := testConfig(t)
	out := &syncBuffer{}
	a := New(Options{Config: cfg, Version: "test", Stdout: out})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	lines := out.Lines()
	require.NotEmpty(t, lines)
	var prev int64
	for _, line := range lines {
		key, payload, ok := strings.Cut(line, "\t")
		require.True(t, ok, "line %q", line)
		ev, err := songevent.Unmarshal([]byte(payload))
		require.NoError(t, err)
		assert.Equal(t, ev.RoutingKey(), key)
		assert.GreaterOrEqual(t, ev.Timestamp, prev, "events leave in timestamp order")
		prev = ev.Timestamp
	}

	r, err := report.Read(cfg.Report.Path)
	require.NoError(t, err)
	assert.Equal(t, a.RunID(), r.RunID)
	assert.Equal(t, ModeRun, r.Mode)
	assert.Equal(t, uint64(99), r.Seed)
	assert.Equal(t, 1000, r.Listeners)
	assert.Equal(t, int64(len(lines)), r.Sent)
	assert.Empty(t, r.Error)

	var generated int64
	for _, n := range r.EventsByKind {
		generated += n
	}
	assert.Equal(t, generated, r.Sent+r.SendFailures+r.Dropped)
	assert.False(t, r.EndedAt.Before(r.StartedAt))
}

func TestComponentLoggersCarryOneComponent(t *testing.T) {
	logs := &syncBuffer{}
	log.Configure(log.Config{Level: "info", Output: logs})
	t.Cleanup(func() { log.Configure(log.Config{}) })

	cfg := testConfig(t)
	cfg.Generator.Players = 10
	cfg.Generator.RunFor = 300 * time.Millisecond
	a := New(Options{Config: cfg, Stdout: &syncBuffer{}})
	require.NoError(t, a.Run(context.Background()))

	components := map[string]bool{}
	for _, line := range logs.Lines() {
		require.LessOrEqual(t, strings.Count(line, `"component":`), 1, "line %s", line)
		if _, rest, ok := strings.Cut(line, `"component":"`); ok {
			name, _, _ := strings.Cut(rest, `"`)
			components[name] = true
			assert.Contains(t, line, `"run_id":"`+a.RunID()+`"`)
		}
	}
	assert.True(t, components["app"])
	assert.True(t, components["scheduler"])
	assert.True(t, components["sink"])
}

func TestStopEndsRunGracefully(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.RunFor = 0
	a := New(Options{Config: cfg, Stdout: &syncBuffer{}})

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	time.Sleep(300 * time.Millisecond)
	a.Stop()
	a.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunTwiceFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.Players = 1
	cfg.Generator.RunFor = 50 * time.Millisecond
	a := New(Options{Config: cfg, Stdout: &syncBuffer{}})

	require.NoError(t, a.Run(context.Background()))
	assert.ErrorIs(t, a.Run(context.Background()), ErrAlreadyStarted)
	assert.ErrorIs(t, a.RunPlays(context.Background()), ErrAlreadyStarted)
}

func TestRunFailsOnBadCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.lst")
	a := New(Options{Config: cfg, Stdout: &syncBuffer{}})

	require.Error(t, a.Run(context.Background()))
}

func TestRunPlays(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plays.MinXput = 200
	cfg.Plays.MaxXput = 200
	cfg.Generator.RunFor = 300 * time.Millisecond
	out := &syncBuffer{}
	a := New(Options{Config: cfg, Stdout: out})

	require.NoError(t, a.RunPlays(context.Background()))

	lines := out.Lines()
	require.NotEmpty(t, lines)
	key, payload, ok := strings.Cut(lines[0], "\t")
	require.True(t, ok)
	assert.Contains(t, payload, `"playerId":"`+key+`"`)

	r, err := report.Read(cfg.Report.Path)
	require.NoError(t, err)
	assert.Equal(t, ModePlays, r.Mode)
	assert.Equal(t, int64(len(lines)), r.Plays)
}

func TestAdminFailureStopsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.RunFor = 0
	cfg.Admin.Listen = "not-an-address"
	a := New(Options{Config: cfg, Stdout: &syncBuffer{}})

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin")
	case <-time.After(5 * time.Second):
		t.Fatal("admin failure did not stop the run")
	}
}
