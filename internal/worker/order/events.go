package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/messaging"
	ordersvc "github.com/Additional-Code/brewline/internal/service/order"
	"github.com/Additional-Code/brewline/internal/service/report"
	"github.com/Additional-Code/brewline/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/brewline/worker/order")

// Module registers order event handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// EventHandler keeps cached read models consistent with committed order changes.
type EventHandler struct {
	cache  cache.Store
	logger *zap.Logger
}

// NewEventHandler registers the order events handler on the client's topic.
func NewEventHandler(client messaging.Client, store cache.Store, logger *zap.Logger) worker.HandlerRegistration {
	h := &EventHandler{cache: store, logger: logger}
	return worker.HandlerRegistration{
		Topic:   client.Topic(),
		Handler: h.Handle,
	}
}

// Handle drops the cached reports and the order's cached copy. Undecodable messages are
// logged and skipped so they do not block the partition.
func (h *EventHandler) Handle(ctx context.Context, msg messaging.Message) error {
	ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.Int64("messaging.offset", msg.Offset),
	))
	defer span.End()

	var event ordersvc.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to decode order event", zap.Int64("offset", msg.Offset), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode error")
		return nil
	}
	span.SetAttributes(
		attribute.String("order.event", event.Type),
		attribute.Int64("order.id", event.OrderID),
	)

	if err := report.InvalidateCache(ctx, h.cache); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalidate reports")
		return fmt.Errorf("invalidate report cache: %w", err)
	}
	if event.Type == ordersvc.EventOrderStatusChanged {
		if err := h.cache.Delete(ctx, ordersvc.CacheKey(event.OrderID)); err != nil {
			h.logger.Warn("order cache delete failed", zap.Int64("id", event.OrderID), zap.Error(err))
		}
	}

	h.logger.Info("order event processed",
		zap.String("type", event.Type),
		zap.Int64("id", event.OrderID),
		zap.String("number", event.Number),
		zap.String("status", event.Status.String()),
	)
	return nil
}
