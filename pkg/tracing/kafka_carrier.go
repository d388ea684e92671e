package tracing

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	TraceparentHeader = "traceparent"
	EventTypeHeader   = "event_type"
)

var _ propagation.TextMapCarrier = KafkaCarrier{}

// KafkaCarrier reads and writes trace context on the headers of a kafka
// message. Set replaces a header with the same key instead of adding a
// duplicate.
type KafkaCarrier struct {
	headers *[]kafka.Header
}

func NewKafkaCarrier(headers *[]kafka.Header) KafkaCarrier {
	return KafkaCarrier{headers: headers}
}

func (c KafkaCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c KafkaCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c KafkaCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// Inject writes the span context of ctx using the global propagator.
func (c KafkaCarrier) Inject(ctx context.Context) {
	otel.GetTextMapPropagator().Inject(ctx, c)
}

// Extract returns ctx carrying the remote span context found in the headers.
func (c KafkaCarrier) Extract(ctx context.Context) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, c)
}

// Propagate writes traceparent when one was captured earlier, for example
// when the event was recorded, and falls back to the span in ctx.
func (c KafkaCarrier) Propagate(ctx context.Context, traceparent string) {
	if traceparent != "" {
		c.Set(TraceparentHeader, traceparent)
		return
	}
	c.Inject(ctx)
}

// Traceparent returns the W3C traceparent of the span in ctx, or "".
func Traceparent(ctx context.Context) string {
	var headers []kafka.Header
	carrier := NewKafkaCarrier(&headers)
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get(TraceparentHeader)
}
