package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DegradedKey       = "ivrflow.degraded"
	DegradedReasonKey = "ivrflow.degraded.reason"
)

// SetError fails the span. A nil err leaves it untouched.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// MarkDegraded records that the caller still got an answer, through native speech or the apology,
// even though the span failed.
func MarkDegraded(span trace.Span, reason string) {
	span.SetAttributes(
		attribute.Bool(DegradedKey, true),
		attribute.String(DegradedReasonKey, reason),
	)
}
