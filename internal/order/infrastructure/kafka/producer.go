package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns a producer for outbox events. Messages carry their own
// topic, and the hash balancer keeps every event of one order on the same
// partition.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
