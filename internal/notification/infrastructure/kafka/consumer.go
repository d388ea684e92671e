package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/caprisoft/storefront/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Dedup interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type EventHandler interface {
	HandleOrderEvent(ctx context.Context, eventType string, payload []byte) error
}

type Consumer struct {
	log     *slog.Logger
	reader  Reader
	handler EventHandler
	idem    Dedup
	tracer  trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, handler EventHandler, idem Dedup) *Consumer {
	return &Consumer{
		log:     log,
		reader:  reader,
		handler: handler,
		idem:    idem,
		tracer:  otel.Tracer("notification-consumer"),
	}
}

// Run consumes until ctx is cancelled. Every message is committed once
// handled, including ones that fail to decode, so a poison message cannot
// stall the partition.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return
	}

	carrier := tracing.NewKafkaCarrier(&msg.Headers)
	eventType := carrier.Get(tracing.EventTypeHeader)
	msgCtx := carrier.Extract(ctx)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderEvent", trace.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.String("order.id", string(msg.Key)),
	))
	defer span.End()

	if err := c.handler.HandleOrderEvent(msgCtx, eventType, msg.Value); err != nil {
		span.RecordError(err)
		c.log.Error("order event handling failed", "type", eventType, "order_id", string(msg.Key), "err", err)
	}
}
