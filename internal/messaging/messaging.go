package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/config"
)

// Message represents a message consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message. A returned error leaves the message uncommitted.
type Handler func(context.Context, Message) error

// Client publishes to and consumes from the order events topic.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic
	if !cfg.Messaging.Enabled {
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	case "memory":
		logger.Info("using in-process message bus", zap.String("topic", topic))
		return NewMemoryClient(topic, memoryBuffer), nil
	case "noop":
		return noopClient{topic: topic}, nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

// noopClient drops published messages and blocks consumers until cancelled.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, []byte, []byte) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }
