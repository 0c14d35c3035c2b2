package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope name for flow client spans.
const TracerName = "flowclient"

// Tracer returns the tracer from the global provider. Without a configured
// provider this is the noop tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
