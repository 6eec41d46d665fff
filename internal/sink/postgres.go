// SPDX-License-Identifier: MIT

package sink

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/config"
	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

const (
	dialectPostgres = "postgres"
	colRoutingKey   = "routing_key"
	colPayload      = "payload"
	castJsonb       = "?::jsonb"
)

const createPostgresTable = `CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	routing_key TEXT NOT NULL,
	payload     JSONB NOT NULL,
	sent_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres inserts one row per payload into a table it creates if missing.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	logger zerolog.Logger
}

// NewPostgres connects through a pgx pool and provisions the table.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger zerolog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	ddl := fmt.Sprintf(createPostgresTable, pgx.Identifier{cfg.Table}.Sanitize())
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create table %s: %w", cfg.Table, err)
	}

	logger.Info().
		Str("table", cfg.Table).
		Str(log.FieldEvent, "postgres.table_ready").
		Msg("postgres table ready")

	return &Postgres{pool: pool, table: cfg.Table, logger: logger}, nil
}

// buildPostgresInsert renders the parameterized INSERT for one payload.
func buildPostgresInsert(table, routingKey string, payload []byte) (string, []interface{}, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(table).
		Rows(goqu.Record{
			colRoutingKey: routingKey,
			colPayload:    goqu.L(castJsonb, string(payload)),
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("postgres: build insert: %w", err)
	}
	return query, args, nil
}

func (p *Postgres) Send(ctx context.Context, routingKey string, payload []byte) error {
	query, args, err := buildPostgresInsert(p.table, routingKey, payload)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
