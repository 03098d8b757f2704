// Package telemetry wraps OpenTelemetry span creation around the encode
// passes.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "colstate/mapstate"

// StartSpan starts a span named name under the mapstate tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, name, opts...)
}

// MeasureEncode runs fn inside a span, recording elapsed time and any
// error as span attributes/status.
func MeasureEncode(ctx context.Context, name string, typeName string, fn func() error) error {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(attribute.String("type", typeName)))
	defer span.End()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
