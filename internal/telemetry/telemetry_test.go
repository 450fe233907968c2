package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitDisabled(t *testing.T) {
	p, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestStartLLMSpanNilTracer(t *testing.T) {
	ctx, span := StartLLMSpan(context.Background(), nil, "llm.chat", "m", "critic")
	require.NotNil(t, ctx)
	span.SetInputSize(2, 10)
	span.SetError(errors.New("boom"))
	span.End()
}

func TestStartLLMSpanRecordsSizesNotContent(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := StartLLMSpan(context.Background(), tp.Tracer("test"), "llm.chat", "openai/gpt-4o", "critic")
	span.SetInputSize(3, 42)
	span.SetOutputSize(17)
	span.SetChunks(4)
	span.SetPlaceholder()
	span.SetError(errors.New("upstream 500"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "llm.chat", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "openai/gpt-4o", attrs["llm.request.model"].AsString())
	assert.Equal(t, "critic", attrs["llm.task"].AsString())
	assert.Equal(t, int64(3), attrs["llm.request.messages"].AsInt64())
	assert.Equal(t, int64(42), attrs["llm.request.chars"].AsInt64())
	assert.Equal(t, int64(17), attrs["llm.response.chars"].AsInt64())
	assert.Equal(t, int64(4), attrs["llm.stream.chunks"].AsInt64())
	assert.True(t, attrs["llm.response.placeholder"].AsBool())
	assert.Contains(t, attrs, attribute.Key("llm.latency_ms"))
}
