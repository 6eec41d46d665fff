// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/twincitiesguy/pravega-music-demo/internal/log"
)

// EnvPrefix prefixes every environment key the loader reads.
const EnvPrefix = "SONGGEN_"

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "password") || strings.Contains(lower, "dsn")
}

// lookup returns the value of a non-empty environment variable and logs
// where the setting came from.
func lookup(logger zerolog.Logger, key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	ev := logger.Debug().Str(log.FieldKey, key).Str(log.FieldSource, "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", value)
	}
	ev.Msg("using environment variable")
	return value, true
}

func invalid(logger zerolog.Logger, key, value string, err error) {
	logger.Warn().
		Err(err).
		Str(log.FieldKey, key).
		Str("value", value).
		Str(log.FieldEvent, "config.env_invalid").
		Msg("ignoring unparsable environment variable")
}

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	if v, ok := lookup(log.WithComponent("config"), key); ok {
		return v
	}
	return defaultValue
}

// ParseInt reads an integer, falling back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		invalid(logger, key, v, err)
		return defaultValue
	}
	return i
}

// ParseInt64 reads a 64-bit integer, falling back to defaultValue on parse errors.
func ParseInt64(key string, defaultValue int64) int64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		invalid(logger, key, v, err)
		return defaultValue
	}
	return i
}

// ParseUint reads an unsigned integer, falling back to defaultValue on parse errors.
func ParseUint(key string, defaultValue uint64) uint64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		invalid(logger, key, v, err)
		return defaultValue
	}
	return u
}

// ParseFloat reads a float, falling back to defaultValue on parse errors.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		invalid(logger, key, v, err)
		return defaultValue
	}
	return f
}

// ParseBool reads a boolean, falling back to defaultValue on parse errors.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		invalid(logger, key, v, err)
		return defaultValue
	}
	return b
}

// ParseDuration reads a Go duration string, falling back to defaultValue on parse errors.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookup(logger, key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		invalid(logger, key, v, err)
		return defaultValue
	}
	return d
}

// ParseList reads a comma-separated list; blank entries are dropped.
func ParseList(key string, defaultValue []string) []string {
	v, ok := lookup(log.WithComponent("config"), key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
