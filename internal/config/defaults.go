// SPDX-License-Identifier: MIT

package config

import "time"

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Generator: GeneratorConfig{
			Players: 100,
			Horizon: 5 * time.Second,
		},
		Plays: PlaysConfig{
			MinXput:      1,
			MaxXput:      20,
			XputInterval: 20 * time.Second,
		},
		Sink: SinkConfig{
			Type:   SinkStdout,
			Stream: "songs",
			Kafka: KafkaConfig{
				Brokers:           []string{"localhost:9092"},
				Partitions:        3,
				ReplicationFactor: 1,
				CreateTopic:       true,
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				MaxLen: 1_000_000,
			},
			Postgres: PostgresConfig{Table: "song_events"},
			SQLite: SQLiteConfig{
				Path:        "songgen.db",
				BusyTimeout: 5 * time.Second,
			},
			Badger: BadgerConfig{Dir: "songgen-badger"},
			Breaker: BreakerConfig{
				Threshold:    5,
				ResetTimeout: 10 * time.Second,
			},
		},
		Admin: AdminConfig{RequestsPerMinute: 120},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}
