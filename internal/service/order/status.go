package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/entity"
	menurepo "github.com/Additional-Code/brewline/internal/repository/menu"
	repo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// UpdateStatus moves an order along the status table. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*entity.Order, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	next, ok := entity.ParseOrderStatus(strings.TrimSpace(status))
	if !ok {
		return nil, errorbank.Validation(
			[]string{fmt.Sprintf("invalid status: %s", status)},
			errorbank.WithDetail("allowed", entity.OrderStatuses),
		)
	}

	return s.transition(ctx, "update_status", id, next, func(current *entity.Order) error {
		if !current.Status.CanTransitionTo(next) {
			return errorbank.InvalidTransition(current.Status.String(), next.String())
		}
		return nil
	})
}

// Cancel cancels a pending or preparing order on behalf of its owner or an admin.
func (s *Service) Cancel(ctx context.Context, caller auth.Caller, id int64) (*entity.Order, error) {
	if !caller.IsAuthenticated() {
		return nil, errorbank.Unauthorized("authentication required")
	}

	return s.transition(ctx, "cancel", id, entity.OrderStatusCancelled, func(current *entity.Order) error {
		if !caller.CanAccess(current.AccountID) {
			return errorbank.Forbidden("you may only cancel your own orders")
		}
		if !current.Status.Cancellable() {
			return errorbank.InvalidTransition(current.Status.String(), entity.OrderStatusCancelled.String())
		}
		return nil
	})
}

// transition re-reads the order under lock, lets allow veto the move and applies a
// status-guarded update. A lost race is retried from the re-read.
func (s *Service) transition(ctx context.Context, op string, id int64, next entity.OrderStatus, allow func(*entity.Order) error) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", next.String()),
	))
	defer span.End()

	var (
		updated  *entity.Order
		previous entity.OrderStatus
	)
	err := s.withRetry(ctx, op, func(ctx context.Context, orders *repo.Repository, _ *menurepo.Repository) error {
		current, err := orders.GetForUpdate(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		if err != nil {
			return err
		}
		if err := allow(current); err != nil {
			return err
		}
		if err := orders.UpdateStatus(ctx, id, current.Status, next, s.now().UTC()); err != nil {
			return err
		}
		order, err := orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		updated, previous = order, current.Status
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, err
	}

	s.metrics.transitioned(ctx, previous, next)
	s.afterWrite(ctx, updated, newEvent(EventOrderStatusChanged, updated, previous))
	s.logger.Info("order status changed",
		zap.Int64("id", updated.ID),
		zap.String("from", previous.String()),
		zap.String("to", next.String()),
	)
	return updated, nil
}
