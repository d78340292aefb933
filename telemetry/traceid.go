package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// traceIDFrom extracts the active span's trace id from ctx, or "" if no
// span is recording. Used to correlate log lines with traces without the
// logger depending on the tracer directly.
func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
