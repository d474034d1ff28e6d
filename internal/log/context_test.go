// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestContextWithCycleID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
		want string
	}{
		{"nil context", nil, "c-1", "c-1"},
		{"background context", context.Background(), "c-2", "c-2"},
		{"empty id", context.Background(), "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithCycleID(tt.ctx, tt.id)
			assert.Equal(t, tt.want, CycleIDFromContext(ctx))
		})
	}
}

func TestFromContext_Missing(t *testing.T) {
	assert.Empty(t, CycleIDFromContext(context.Background()))
	assert.Empty(t, DeviceKeyFromContext(context.Background()))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithContext_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithCycleID(context.Background(), "cycle-42")
	ctx = ContextWithDeviceKey(ctx, "1050A1B2")

	l := WithContext(ctx, logger)
	l.Info().Msg("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "cycle-42", entry[FieldCycleID])
	assert.Equal(t, "1050A1B2", entry[FieldDeviceKey])
	assert.NotContains(t, entry, "trace_id")
}

func TestWithContext_NoopSpanAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "span")
	defer span.End()

	l := WithContext(ctx, logger)
	l.Info().Msg("plain")

	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, FieldCycleID)
}

func TestWithContext_ValidSpan(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	var buf bytes.Buffer
	l := WithContext(ctx, zerolog.New(&buf))
	l.Info().Msg("traced")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestWithComponent_CarriesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Level: "debug", Version: "1.2.3"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("daemon")
	l.Info().Msg("component")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "daemon", entry["component"])
	assert.Equal(t, "hdhr-monitor", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
}
