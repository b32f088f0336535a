package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/messaging"
)

const (
	restartBaseDelay = time.Second
	restartMaxDelay  = 30 * time.Second
)

// HandlerRegistration binds a message topic to a handler.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the bus with a fixed number of workers and dispatches every message
// to the handlers registered for its topic.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string][]messaging.Handler
	cancel        context.CancelFunc
	done          chan error
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make(map[string][]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = append(reg[r.Topic], r.Handler)
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:        p.Client,
		logger:        logger,
		cfg:           p.Config,
		registrations: reg,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

// Enabled reports whether configuration and registrations allow the engine to run.
func (e *Engine) Enabled() bool {
	return e.cfg.Messaging.Enabled && e.cfg.Messaging.Workers.Enabled && len(e.registrations) > 0
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		workerID := i
		g.Go(func() error {
			e.consumeLoop(gctx, workerID)
			return nil
		})
	}
	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.String("topic", e.client.Topic()))
	return g.Wait()
}

func (e *Engine) start(context.Context) error {
	if !e.Enabled() {
		e.logger.Info("worker engine disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan error, 1)
	go func() {
		e.done <- e.Run(runCtx)
	}()
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-e.done:
		e.logger.Info("worker engine stopped")
		return err
	}
}

// dispatch runs every handler registered for the message topic.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	handlers, ok := e.registrations[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	e.logger.Debug("processing message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
		zap.Int("worker", workerID),
	)
	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// consumeLoop restarts Consume with capped exponential backoff until ctx ends.
func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := retry.WithCappedDuration(restartMaxDelay, retry.NewExponential(restartBaseDelay))
	for {
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})
		if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
			return
		}

		delay, _ := backoff.Next()
		e.logger.Error("consume loop error", zap.Error(err), zap.Int("worker", workerID), zap.Duration("retry_in", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}
