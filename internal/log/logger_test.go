// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var fields map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	return fields
}

func TestConfigureAttachesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Version: "v1.2.3"})
	t.Cleanup(func() { Configure(Config{}) })

	logger := WithComponent("scheduler")
	logger.Info().Str(FieldEvent, "scheduler.started").Msg("started")

	fields := decodeLine(t, &buf)
	assert.Equal(t, "songgen", fields[FieldService])
	assert.Equal(t, "v1.2.3", fields[FieldVersion])
	assert.Equal(t, "scheduler", fields[FieldComponent])
	assert.Equal(t, "scheduler.started", fields[FieldEvent])
}

func TestConfigureRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	logger := Base()
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestWithComponentFromContextAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRunID(context.Background(), "run-42")
	logger := WithComponentFromContext(ctx, "app")
	logger.Info().Msg("hello")

	fields := decodeLine(t, &buf)
	assert.Equal(t, "run-42", fields[FieldRunID])
	assert.Equal(t, "app", fields[FieldComponent])
}

func TestRunIDFromContext(t *testing.T) {
	assert.Empty(t, RunIDFromContext(nil)) //nolint:staticcheck
	assert.Empty(t, RunIDFromContext(context.Background()))
	assert.Equal(t, "x", RunIDFromContext(ContextWithRunID(nil, "x"))) //nolint:staticcheck
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "trace", LevelFor("info", true, true))
	assert.Equal(t, "debug", LevelFor("info", true, false))
	assert.Equal(t, "warn", LevelFor("warn", false, false))
	assert.Equal(t, "info", LevelFor("", false, false))
}
