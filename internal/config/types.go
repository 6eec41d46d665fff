// SPDX-License-Identifier: MIT

package config

import "time"

// Sink type names accepted in sink.type.
const (
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkBadger   = "badger"
	SinkStdout   = "stdout"
	SinkDiscard  = "discard"
)

// SinkTypes lists every supported sink type.
var SinkTypes = []string{SinkKafka, SinkRedis, SinkPostgres, SinkSQLite, SinkBadger, SinkStdout, SinkDiscard}

// Config is the full generator configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Generator GeneratorConfig `yaml:"generator"`
	Plays     PlaysConfig     `yaml:"plays"`
	Sink      SinkConfig      `yaml:"sink"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Report    ReportConfig    `yaml:"report"`
	Catalog   CatalogConfig   `yaml:"catalog"`

	Version string `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GeneratorConfig drives the scheduler.
type GeneratorConfig struct {
	Players            int           `yaml:"players"`
	Horizon            time.Duration `yaml:"horizon"`
	Seed               uint64        `yaml:"seed"` // 0 derives a seed from the clock
	MaxEventsPerSecond float64       `yaml:"max_events_per_second"`
	RunFor             time.Duration `yaml:"run_for"` // 0 runs until signalled
}

// PlaysConfig drives the play generator.
type PlaysConfig struct {
	MinXput      int           `yaml:"min_xput"`
	MaxXput      int           `yaml:"max_xput"`
	XputInterval time.Duration `yaml:"xput_interval"`
}

type SinkConfig struct {
	Type     string         `yaml:"type"`
	Stream   string         `yaml:"stream"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Badger   BadgerConfig   `yaml:"badger"`
	Breaker  BreakerConfig  `yaml:"breaker"`
}

// BreakerConfig guards sends with a circuit breaker; Threshold 0 disables it.
type BreakerConfig struct {
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Partitions        int      `yaml:"partitions"`
	ReplicationFactor int      `yaml:"replication_factor"`
	CreateTopic       bool     `yaml:"create_topic"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	MaxLen   int64  `yaml:"max_len"`
	Group    string `yaml:"group"` // consumer group created with the stream, optional
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// AdminConfig configures the metrics/health listener; empty Listen disables it.
type AdminConfig struct {
	Listen            string `yaml:"listen"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc or http
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

type ReportConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig points at an external song list; empty uses the embedded one.
type CatalogConfig struct {
	Path string `yaml:"path"`
}
