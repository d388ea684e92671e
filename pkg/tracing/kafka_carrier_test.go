package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const sampleTraceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestTraceparent(t *testing.T) {
	assert.Empty(t, Traceparent(context.Background()))
	assert.Equal(t, sampleTraceparent, Traceparent(spanContext(t)))
}

func TestCarrierInjectThenExtract(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	headers := []kafka.Header{{Key: EventTypeHeader, Value: []byte("order.created")}}
	NewKafkaCarrier(&headers).Inject(spanContext(t))
	require.Len(t, headers, 2)

	got := trace.SpanContextFromContext(NewKafkaCarrier(&headers).Extract(context.Background()))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got.TraceID().String())
	assert.True(t, got.IsRemote())
}

func TestCarrierSetReplacesExistingKey(t *testing.T) {
	var headers []kafka.Header
	c := NewKafkaCarrier(&headers)
	c.Set(EventTypeHeader, "order.created")
	c.Set(EventTypeHeader, "order.cancelled")

	require.Len(t, headers, 1)
	assert.Equal(t, "order.cancelled", c.Get(EventTypeHeader))
	assert.Equal(t, []string{EventTypeHeader}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}

func TestPropagatePrefersRecordedTraceparent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	recorded := "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"

	var headers []kafka.Header
	NewKafkaCarrier(&headers).Propagate(spanContext(t), recorded)
	assert.Equal(t, recorded, NewKafkaCarrier(&headers).Get(TraceparentHeader))

	headers = nil
	NewKafkaCarrier(&headers).Propagate(spanContext(t), "")
	assert.Equal(t, sampleTraceparent, NewKafkaCarrier(&headers).Get(TraceparentHeader))
}
