// Package producers publishes settlement outcome events to Kafka. The engine
// only ever writes to the broker; nothing in this system consumes from it.
package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher is what the settlement services depend on. Key is the
// order reference, so all events for one withdrawal land on one partition
// in order.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaWriter abstracts kafka.Writer so producer tests can swap in a mock.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
