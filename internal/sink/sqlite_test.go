// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
)

func TestSQLiteSendPersistsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	cfg := config.SQLiteConfig{Path: path, BusyTimeout: time.Second}

	s, err := NewSQLite(context.Background(), "songs", cfg, zerolog.Nop())
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1234) }

	ctx := context.Background()
	require.NoError(t, s.Send(ctx, "1", []byte(`{"playerId":1}`)))
	require.NoError(t, s.Send(ctx, "2", []byte(`{"playerId":2}`)))

	rows, err := s.db.QueryContext(ctx, "SELECT stream, routing_key, payload, sent_at FROM song_events ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	type row struct {
		stream, key, payload string
		sentAt               int64
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.stream, &r.key, &r.payload, &r.sentAt))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []row{
		{"songs", "1", `{"playerId":1}`, 1234},
		{"songs", "2", `{"playerId":2}`, 1234},
	}, got)
	require.NoError(t, s.Close())

	// Reopening keeps existing rows.
	s, err = NewSQLite(ctx, "songs", cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM song_events").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSQLiteUsesWAL(t *testing.T) {
	cfg := config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "wal.db"), BusyTimeout: time.Second}
	s, err := NewSQLite(context.Background(), "songs", cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
