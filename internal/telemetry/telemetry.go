// Package telemetry provides OpenTelemetry tracing for model calls.
//
// Spans record sizes, models and timings only. Message content is never
// attached to a span.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/r3d91ll/innercritic"

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // host:port of an OTLP/HTTP collector
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// DefaultConfig returns default telemetry config.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Endpoint:    "localhost:4318",
		ServiceName: "innercritic",
		Insecure:    true,
	}
}

// Provider owns the tracer provider for one process.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init builds a Provider. When tracing is disabled the returned provider
// hands out no-op tracers and Shutdown does nothing.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}, nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithURLPath("/v1/traces"),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		"",
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion("dev"),
	)

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(sdk)

	return &Provider{sdk: sdk, tracer: sdk.Tracer(instrumentationName)}, nil
}

// Tracer returns the provider's tracer. A nil provider yields a no-op tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.sdk != nil
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.sdk.Shutdown(shutdownCtx)
}

// LLMSpan represents a model call span with attributes.
type LLMSpan struct {
	span      trace.Span
	startTime time.Time
}

// StartLLMSpan starts a span for a model call. tracer may be nil.
func StartLLMSpan(ctx context.Context, tracer trace.Tracer, name, model, task string) (context.Context, *LLMSpan) {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
	}
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.request.model", model),
			attribute.String("llm.task", task),
			attribute.String("llm.system", "openrouter"),
		),
	)
	return ctx, &LLMSpan{span: span, startTime: time.Now()}
}

// SetInputSize records how many messages and characters were sent.
func (s *LLMSpan) SetInputSize(messages, chars int) {
	s.span.SetAttributes(
		attribute.Int("llm.request.messages", messages),
		attribute.Int("llm.request.chars", chars),
	)
}

// SetOutputSize records the length of the returned text.
func (s *LLMSpan) SetOutputSize(chars int) {
	s.span.SetAttributes(attribute.Int("llm.response.chars", chars))
}

// SetChunks records how many stream deltas were delivered.
func (s *LLMSpan) SetChunks(n int) {
	s.span.SetAttributes(attribute.Int("llm.stream.chunks", n))
}

// SetPlaceholder marks a response that was replaced by a placeholder.
func (s *LLMSpan) SetPlaceholder() {
	s.span.SetAttributes(attribute.Bool("llm.response.placeholder", true))
}

// SetError records an error on the span.
func (s *LLMSpan) SetError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End completes the span.
func (s *LLMSpan) End() {
	s.span.SetAttributes(attribute.Int64("llm.latency_ms", time.Since(s.startTime).Milliseconds()))
	s.span.End()
}
