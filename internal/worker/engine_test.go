package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/messaging"
)

func workerConfig(concurrency int) config.Config {
	return config.Config{Messaging: config.Messaging{
		Enabled: true,
		Workers: config.Worker{Enabled: true, Concurrency: concurrency},
	}}
}

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) handle(_ context.Context, msg messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, string(msg.Value))
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func TestEngineDispatchesToEveryHandler(t *testing.T) {
	client := messaging.NewMemoryClient("orders", 16)
	first, second := &collector{}, &collector{}
	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: workerConfig(3),
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: first.handle},
			{Topic: "orders", Handler: second.handle},
			{Topic: "", Handler: first.handle},
		},
	})
	require.True(t, engine.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	for _, v := range []string{"a", "b", "c", "d"} {
		require.NoError(t, client.Publish(ctx, nil, []byte(v)))
	}
	require.Eventually(t, func() bool { return first.count() == 4 && second.count() == 4 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, first.seen)
}

func TestEngineJoinsHandlerErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	engine := NewEngine(Params{
		Client: messaging.NewMemoryClient("orders", 1),
		Config: workerConfig(1),
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { calls++; return boom }},
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { calls++; return nil }},
		},
	})

	err := engine.dispatch(context.Background(), 0, messaging.Message{Topic: "orders"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)

	assert.NoError(t, engine.dispatch(context.Background(), 0, messaging.Message{Topic: "unknown"}))
}

func TestEngineDisabled(t *testing.T) {
	cfg := workerConfig(1)
	cfg.Messaging.Workers.Enabled = false
	engine := NewEngine(Params{
		Client:        messaging.NewMemoryClient("orders", 1),
		Config:        cfg,
		Registrations: []HandlerRegistration{{Topic: "orders", Handler: (&collector{}).handle}},
	})
	assert.False(t, engine.Enabled())
	require.NoError(t, engine.start(context.Background()))
	assert.NoError(t, engine.stop(context.Background()))

	empty := NewEngine(Params{Client: messaging.NewMemoryClient("orders", 1), Config: workerConfig(1)})
	assert.False(t, empty.Enabled())
}

func TestEngineLifecycle(t *testing.T) {
	client := messaging.NewMemoryClient("orders", 4)
	seen := &collector{}
	engine := NewEngine(Params{
		Client:        client,
		Config:        workerConfig(2),
		Registrations: []HandlerRegistration{{Topic: "orders", Handler: seen.handle}},
	})

	require.NoError(t, engine.start(context.Background()))
	require.NoError(t, client.Publish(context.Background(), nil, []byte("x")))
	require.Eventually(t, func() bool { return seen.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, engine.stop(ctx))
}
