// SPDX-License-Identifier: MIT

package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

func sample() Report {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Report{
		RunID:     "5f0c3c52-8d3e-4f59-9d4a-3c1b1c0a0e11",
		Mode:      "run",
		Seed:      42,
		Sink:      "stdout",
		Stream:    "songs",
		StartedAt: start,
		EndedAt:   start.Add(90 * time.Second),
		Listeners: 100,
		EventsByKind: map[songevent.Kind]int64{
			songevent.Select: 120,
			songevent.Next:   300,
			songevent.Pause:  4,
		},
		Sent:         424,
		SendFailures: 0,
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	want := sample()

	require.NoError(t, Write(context.Background(), path, want))

	got, err := Read(path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 90*time.Second, got.Duration())
}

func TestWriteReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	r := sample()
	r.Sent = 1
	require.NoError(t, Write(context.Background(), path, r))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sent": 1`)
	assert.Contains(t, string(raw), `"events_by_kind"`)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
