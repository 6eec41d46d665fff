// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

func TestDispatchRecordsBatchSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	now := time.Now().UnixMilli()
	sink := &recordingSink{}
	src := &scriptedSource{events: []songevent.Event{event(1, now), event(2, now), event(3, now)}}
	s := New(sources(src), sink, WithLogger(zerolog.Nop()), WithTracer(tp.Tracer("test")))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	require.NoError(t, <-done)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "dispatch.batch", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("batch.size", 3))
}
