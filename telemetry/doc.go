/*
Package telemetry provides the router's logging and tracing surface.

It implements the two ambient interfaces every other package depends on
through core (core.Logger / core.ComponentAwareLogger / core.Telemetry),
so the rest of the module never imports an OpenTelemetry or logging
package directly.

Logger is a structured logger: JSON output when running in a cluster
(detected via KUBERNETES_SERVICE_HOST, overridable with CASCADE_LOG_FORMAT),
human-readable text locally, and rate-limited error logging so a failing
provider doesn't flood stdout.

Tracer wraps OpenTelemetry: stdouttrace in development (UseProfile(ProfileDevelopment)),
otlptracegrpc against a collector in production. Spans are opened through
StartSpan (the cascade executor opens one per model call) and counters are
recorded through RecordMetric, which no component of this module calls
itself. This package deliberately does not
attempt cardinality limiting, PII redaction, or metrics fan-out beyond
that — label sets here are small and known at compile time (model name,
domain, complexity band), so the unbounded-cardinality problem those
features guard against does not arise.

Usage:

	logger := telemetry.NewLogger("cascaderouter")
	tracer, shutdown, err := telemetry.NewTracer(context.Background(), telemetry.UseProfile(telemetry.ProfileDevelopment))
	defer shutdown(context.Background())
*/
package telemetry
