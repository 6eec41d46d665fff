// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure Go driver

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

const (
	dialectSQLite = "sqlite3"
	sqliteTable   = "song_events"
	colStream     = "stream"
	colSentAt     = "sent_at"
)

const createSQLiteTable = `CREATE TABLE IF NOT EXISTS song_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	stream      TEXT NOT NULL,
	routing_key TEXT NOT NULL,
	payload     TEXT NOT NULL,
	sent_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_song_events_stream_key ON song_events(stream, routing_key)`

// SQLite appends payloads to a local database file in WAL mode.
type SQLite struct {
	db     *sql.DB
	stream string
	now    func() time.Time
}

// openSQLite initializes a connection pool with WAL and busy_timeout set on
// every connection via DSN pragmas.
func openSQLite(path string, busyTimeout time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	// Single writer; the dispatcher sends sequentially anyway.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}

// NewSQLite opens the database and creates the events table if missing.
func NewSQLite(ctx context.Context, stream string, cfg config.SQLiteConfig, logger zerolog.Logger) (*SQLite, error) {
	db, err := openSQLite(cfg.Path, cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSQLiteTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create table: %w", err)
	}

	logger.Info().
		Str(log.FieldPath, cfg.Path).
		Str(log.FieldEvent, "sqlite.table_ready").
		Msg("sqlite table ready")

	return &SQLite{db: db, stream: stream, now: time.Now}, nil
}

func (s *SQLite) Send(ctx context.Context, routingKey string, payload []byte) error {
	query, args, err := goqu.Dialect(dialectSQLite).
		Insert(sqliteTable).
		Rows(goqu.Record{
			colStream:     s.stream,
			colRoutingKey: routingKey,
			colPayload:    string(payload),
			colSentAt:     s.now().UnixMilli(),
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("sqlite: build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
