// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate reports every problem in cfg at once, wrapped in ErrInvalid.
func Validate(cfg Config) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
			add("log.level %q is not a log level", cfg.Log.Level)
		}
	}
	if f := strings.ToLower(cfg.Log.Format); f != "" && f != "json" && f != "console" {
		add("log.format must be json or console, got %q", cfg.Log.Format)
	}

	g := cfg.Generator
	if g.Players < 1 {
		add("generator.players must be >= 1, got %d", g.Players)
	}
	if g.Horizon <= 0 {
		add("generator.horizon must be positive, got %s", g.Horizon)
	}
	if g.MaxEventsPerSecond < 0 {
		add("generator.max_events_per_second must not be negative")
	}
	if g.RunFor < 0 {
		add("generator.run_for must not be negative")
	}

	p := cfg.Plays
	if p.MinXput <= 0 {
		add("plays.min_xput must be > 0, got %d", p.MinXput)
	}
	if p.MinXput > p.MaxXput {
		add("plays.min_xput (%d) must be <= plays.max_xput (%d)", p.MinXput, p.MaxXput)
	}
	if p.XputInterval <= 0 {
		add("plays.xput_interval must be positive, got %s", p.XputInterval)
	}

	problems = append(problems, validateSink(cfg.Sink)...)

	t := cfg.Telemetry
	if t.Enabled {
		if t.Exporter != "grpc" && t.Exporter != "http" {
			add("telemetry.exporter must be grpc or http, got %q", t.Exporter)
		}
		if t.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		add("telemetry.sampling_rate must be within [0,1], got %g", t.SamplingRate)
	}
	if cfg.Admin.Listen != "" && cfg.Admin.RequestsPerMinute <= 0 {
		add("admin.requests_per_minute must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func validateSink(s SinkConfig) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !slices.Contains(SinkTypes, s.Type) {
		add("sink.type %q is not one of %s", s.Type, strings.Join(SinkTypes, ", "))
		return problems
	}
	if s.Breaker.Threshold < 0 {
		add("sink.breaker.threshold must not be negative")
	}
	if s.Breaker.Threshold > 0 && s.Breaker.ResetTimeout <= 0 {
		add("sink.breaker.reset_timeout must be > 0 when the breaker is enabled")
	}
	if s.Type != SinkStdout && s.Type != SinkDiscard && s.Stream == "" {
		add("sink.stream is required for the %s sink", s.Type)
	}

	switch s.Type {
	case SinkKafka:
		if len(s.Kafka.Brokers) == 0 {
			add("sink.kafka.brokers is required")
		}
		if s.Kafka.Partitions < 1 {
			add("sink.kafka.partitions must be >= 1")
		}
		if s.Kafka.ReplicationFactor < 1 {
			add("sink.kafka.replication_factor must be >= 1")
		}
	case SinkRedis:
		if s.Redis.Addr == "" {
			add("sink.redis.addr is required")
		}
		if s.Redis.MaxLen < 0 {
			add("sink.redis.max_len must not be negative")
		}
	case SinkPostgres:
		if s.Postgres.DSN == "" {
			add("sink.postgres.dsn is required")
		}
		if !identifierPattern.MatchString(s.Postgres.Table) {
			add("sink.postgres.table %q is not a plain identifier", s.Postgres.Table)
		}
	case SinkSQLite:
		if s.SQLite.Path == "" {
			add("sink.sqlite.path is required")
		}
	case SinkBadger:
		if s.Badger.Dir == "" && !s.Badger.InMemory {
			add("sink.badger.dir is required unless in_memory is set")
		}
	}
	return problems
}
