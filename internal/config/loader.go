// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Override mutates a loaded config; command-line flags are applied this way
// so they win over file and environment on every (re)load.
type Override func(*Config)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	overrides       []Override
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string, overrides ...Override) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		overrides:       overrides,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, empty when running from env/flags only.
func (l *Loader) Path() string {
	return l.configPath
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envInt64(key string, defaultVal int64) int64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envUint(key string, defaultVal uint64) uint64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseUint(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load resolves defaults, then the file, then the environment, then flag
// overrides, and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	for _, override := range l.overrides {
		override(&cfg)
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg with strict parsing. Unknown
// fields, multiple documents and non-YAML extensions are errors.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *Config) {
	const p = EnvPrefix

	cfg.Log.Level = l.envString(p+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = l.envString(p+"LOG_FORMAT", cfg.Log.Format)

	cfg.Generator.Players = l.envInt(p+"PLAYERS", cfg.Generator.Players)
	cfg.Generator.Horizon = l.envDuration(p+"HORIZON", cfg.Generator.Horizon)
	cfg.Generator.Seed = l.envUint(p+"SEED", cfg.Generator.Seed)
	cfg.Generator.MaxEventsPerSecond = l.envFloat(p+"MAX_EVENTS_PER_SECOND", cfg.Generator.MaxEventsPerSecond)
	cfg.Generator.RunFor = l.envDuration(p+"RUN_FOR", cfg.Generator.RunFor)

	cfg.Plays.MinXput = l.envInt(p+"MIN_XPUT", cfg.Plays.MinXput)
	cfg.Plays.MaxXput = l.envInt(p+"MAX_XPUT", cfg.Plays.MaxXput)
	cfg.Plays.XputInterval = l.envDuration(p+"XPUT_INTERVAL", cfg.Plays.XputInterval)

	cfg.Sink.Type = l.envString(p+"SINK", cfg.Sink.Type)
	cfg.Sink.Stream = l.envString(p+"STREAM", cfg.Sink.Stream)
	cfg.Sink.Kafka.Brokers = l.envList(p+"KAFKA_BROKERS", cfg.Sink.Kafka.Brokers)
	cfg.Sink.Kafka.Partitions = l.envInt(p+"KAFKA_PARTITIONS", cfg.Sink.Kafka.Partitions)
	cfg.Sink.Kafka.CreateTopic = l.envBool(p+"KAFKA_CREATE_TOPIC", cfg.Sink.Kafka.CreateTopic)
	cfg.Sink.Redis.Addr = l.envString(p+"REDIS_ADDR", cfg.Sink.Redis.Addr)
	cfg.Sink.Redis.Password = l.envString(p+"REDIS_PASSWORD", cfg.Sink.Redis.Password)
	cfg.Sink.Redis.MaxLen = l.envInt64(p+"REDIS_MAX_LEN", cfg.Sink.Redis.MaxLen)
	cfg.Sink.Postgres.DSN = l.envString(p+"POSTGRES_DSN", cfg.Sink.Postgres.DSN)
	cfg.Sink.Postgres.Table = l.envString(p+"POSTGRES_TABLE", cfg.Sink.Postgres.Table)
	cfg.Sink.SQLite.Path = l.envString(p+"SQLITE_PATH", cfg.Sink.SQLite.Path)
	cfg.Sink.Badger.Dir = l.envString(p+"BADGER_DIR", cfg.Sink.Badger.Dir)
	cfg.Sink.Breaker.Threshold = l.envInt(p+"SINK_BREAKER_THRESHOLD", cfg.Sink.Breaker.Threshold)
	cfg.Sink.Breaker.ResetTimeout = l.envDuration(p+"SINK_BREAKER_RESET_TIMEOUT", cfg.Sink.Breaker.ResetTimeout)

	cfg.Admin.Listen = l.envString(p+"ADMIN_LISTEN", cfg.Admin.Listen)

	cfg.Telemetry.Enabled = l.envBool(p+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(p+"TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(p+"TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(p+"TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Report.Path = l.envString(p+"REPORT_PATH", cfg.Report.Path)
	cfg.Catalog.Path = l.envString(p+"CATALOG_PATH", cfg.Catalog.Path)
}
