package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/config"
)

func TestMemoryClientDeliversInOrder(t *testing.T) {
	client := NewMemoryClient("orders", 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Publish(ctx, []byte("order-1"), []byte(`{"n":1}`)))
	require.NoError(t, client.Publish(ctx, []byte("order-1"), []byte(`{"n":2}`)))

	var got []Message
	err := client.Consume(ctx, func(_ context.Context, msg Message) error {
		got = append(got, msg)
		if len(got) == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	assert.Equal(t, "orders", got[0].Topic)
	assert.Equal(t, []byte(`{"n":1}`), got[0].Value)
	assert.Equal(t, int64(0), got[0].Offset)
	assert.Equal(t, int64(1), got[1].Offset)
}

func TestMemoryClientPublishRespectsContext(t *testing.T) {
	client := NewMemoryClient("orders", 1)
	require.NoError(t, client.Publish(context.Background(), nil, []byte("a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Publish(ctx, nil, []byte("b")), context.Canceled)
}

func TestNewClientSelectsDriver(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger := zap.NewNop()

	cfg := config.Config{Messaging: config.Messaging{Enabled: false, Kafka: config.Kafka{Topic: "orders"}}}
	client, err := NewClient(lc, cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, noopClient{}, client)
	assert.Equal(t, "orders", client.Topic())

	cfg.Messaging.Enabled = true
	cfg.Messaging.Driver = "memory"
	client, err = NewClient(lc, cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryClient{}, client)

	cfg.Messaging.Driver = "rabbit"
	_, err = NewClient(lc, cfg, logger)
	assert.Error(t, err)
}

func TestFromKafkaCopiesHeaders(t *testing.T) {
	msg := fromKafka(kafka.Message{
		Topic:   "orders",
		Key:     []byte("order-7"),
		Value:   []byte("{}"),
		Offset:  42,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentTypeJSON)}},
	})
	assert.Equal(t, "orders", msg.Topic)
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, contentTypeJSON, msg.Headers["content-type"])

	assert.Nil(t, fromKafka(kafka.Message{}).Headers)
}
