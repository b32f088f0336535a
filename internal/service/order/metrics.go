package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/entity"
)

type engineMetrics struct {
	createdCounter    metric.Int64Counter
	transitionCounter metric.Int64Counter
	conflictCounter   metric.Int64Counter
}

// newEngineMetrics registers the order counters on the global meter provider.
func newEngineMetrics(logger *zap.Logger) *engineMetrics {
	meter := otel.Meter("github.com/Additional-Code/brewline/service/order")
	return &engineMetrics{
		createdCounter:    counter(meter, logger, "orders.created", "Orders placed."),
		transitionCounter: counter(meter, logger, "orders.status_transitions", "Committed order status changes."),
		conflictCounter:   counter(meter, logger, "orders.create_conflicts", "Order transactions retried after a persistence conflict."),
	}
}

func counter(meter metric.Meter, logger *zap.Logger, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("metric registration failed", zap.String("metric", name), zap.Error(err))
		return noop.Int64Counter{}
	}
	return c
}

func (m *engineMetrics) created(ctx context.Context) {
	m.createdCounter.Add(ctx, 1)
}

func (m *engineMetrics) transitioned(ctx context.Context, from, to entity.OrderStatus) {
	m.transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *engineMetrics) conflict(ctx context.Context, op string) {
	m.conflictCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
