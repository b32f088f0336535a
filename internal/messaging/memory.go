package messaging

import (
	"context"
	"sync/atomic"
	"time"
)

const memoryBuffer = 1024

// MemoryClient is an in-process bus for single-instance deployments and tests.
// Concurrent consumers compete for messages the way members of one consumer group do.
// A message whose handler fails is dropped.
type MemoryClient struct {
	topic    string
	messages chan Message
	offset   atomic.Int64
}

// NewMemoryClient returns a bus holding up to buffer undelivered messages.
func NewMemoryClient(topic string, buffer int) *MemoryClient {
	return &MemoryClient{topic: topic, messages: make(chan Message, buffer)}
}

// Publish enqueues a message, blocking while the buffer is full.
func (m *MemoryClient) Publish(ctx context.Context, key []byte, value []byte) error {
	msg := Message{
		Topic:  m.topic,
		Key:    append([]byte(nil), key...),
		Value:  append([]byte(nil), value...),
		Offset: m.offset.Add(1) - 1,
		Time:   time.Now(),
	}
	select {
	case m.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers messages to handler until ctx is cancelled.
func (m *MemoryClient) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.messages:
			_ = handler(ctx, msg)
		}
	}
}

// Topic returns the topic every message is published on.
func (m *MemoryClient) Topic() string { return m.topic }
