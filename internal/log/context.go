// SPDX-License-Identifier: MIT

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	cycleIDKey   ctxKey = "cycle_id"
	deviceKeyKey ctxKey = "device_key"
)

// ContextWithCycleID stores the scheduler cycle ID in the context.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// ContextWithDeviceKey stores the monitored device key in the context.
func ContextWithDeviceKey(ctx context.Context, key string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, deviceKeyKey, key)
}

// CycleIDFromContext extracts the cycle ID from context if present.
func CycleIDFromContext(ctx context.Context) string {
	return stringValue(ctx, cycleIDKey)
}

// DeviceKeyFromContext extracts the device key from context if present.
func DeviceKeyFromContext(ctx context.Context) string {
	return stringValue(ctx, deviceKeyKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithContext enriches the supplied logger with correlation fields from context.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	builder := logger.With()
	added := false
	if id := CycleIDFromContext(ctx); id != "" {
		builder = builder.Str(FieldCycleID, id)
		added = true
	}
	if key := DeviceKeyFromContext(ctx); key != "" {
		builder = builder.Str(FieldDeviceKey, key)
		added = true
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		builder = builder.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		added = true
	}
	if !added {
		return logger
	}
	return builder.Logger()
}
