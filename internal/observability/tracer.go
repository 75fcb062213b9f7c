package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartInvocationSpan creates a server span for one invocation.
func StartInvocationSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanError marks the span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for photon spans.
var (
	AttrRequestID   = attribute.Key("photon.request_id")
	AttrFunctionARN = attribute.Key("photon.function_arn")
	AttrDeadlineMS  = attribute.Key("photon.deadline_ms")
	AttrErrorType   = attribute.Key("photon.error_type")
)
