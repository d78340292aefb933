package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/cascadehq/cascaderouter/core"
)

// Tracer implements core.Telemetry using OpenTelemetry: StartSpan opens
// spans (the cascade executor opens one per model call) and RecordMetric
// records counters for whichever caller supplies them; no component of
// this module records metrics itself. It deliberately does
// not chase the cardinality-limiting or PII-redaction machinery a
// multi-tenant service mesh needs — every label here (model name, domain,
// complexity band) is a small, bounded, compile-time-known set.
type Tracer struct {
	tracer   trace.Tracer
	meter    metric.Meter
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	counters sync.Map // name -> metric.Float64Counter
	once     sync.Once
}

// NewTracer builds a Tracer from cfg. In development (no Endpoint) spans
// are printed to stdout; otherwise they ship via OTLP/gRPC to cfg.Endpoint.
// The returned shutdown func flushes and closes both providers; callers
// must invoke it once during graceful shutdown.
func NewTracer(ctx context.Context, cfg Config) (*Tracer, func(context.Context) error, error) {
	if !cfg.Enabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var spanExporter sdktrace.SpanExporter
	if cfg.Endpoint == "" {
		spanExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		spanExporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build span exporter: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	t := &Tracer{
		tracer: tp.Tracer("cascaderouter"),
		meter:  mp.Meter("cascaderouter"),
		tp:     tp,
		mp:     mp,
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return fmt.Errorf("telemetry shutdown: %v", errs)
		}
		return nil
	}

	return t, shutdown, nil
}

// StartSpan implements core.Telemetry.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry by recording value against a
// lazily-created Float64Counter keyed on name. Every caller-visible metric
// in this module is cumulative (call counts, escalation counts, warning
// counts), so a single counter instrument covers all of them.
func (t *Tracer) RecordMetric(name string, value float64, labels map[string]string) {
	counter, err := t.counterFor(name)
	if err != nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

func (t *Tracer) counterFor(name string) (metric.Float64Counter, error) {
	if c, ok := t.counters.Load(name); ok {
		return c.(metric.Float64Counter), nil
	}
	c, err := t.meter.Float64Counter(name)
	if err != nil {
		return nil, err
	}
	actual, _ := t.counters.LoadOrStore(name, c)
	return actual.(metric.Float64Counter), nil
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}
