package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/entity"
	menurepo "github.com/Additional-Code/brewline/internal/repository/menu"
	repo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// RecalculateTotal recomputes the total from the persisted lines and stores it.
func (s *Service) RecalculateTotal(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RecalculateTotal", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	var updated *entity.Order
	err := s.withRetry(ctx, "recalculate_total", func(ctx context.Context, orders *repo.Repository, _ *menurepo.Repository) error {
		if _, err := orders.GetForUpdate(ctx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errorbank.NotFound("order not found")
			}
			return err
		}
		order, err := s.recalculate(ctx, orders, id)
		updated = order
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recalculate failed")
		return nil, err
	}

	s.refresh(ctx, updated)
	return updated, nil
}

// UpdateLineQuantity changes one line's quantity and re-derives its subtotal and the order
// total in the same transaction.
func (s *Service) UpdateLineQuantity(ctx context.Context, lineID int64, quantity int) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateLineQuantity", trace.WithAttributes(
		attribute.Int64("order.line.id", lineID),
		attribute.Int("order.line.quantity", quantity),
	))
	defer span.End()

	if quantity <= 0 {
		return nil, errorbank.Validation(
			[]string{"quantity must be a positive integer"},
			errorbank.WithDetail("code", CodeInvalidQuantity),
		)
	}

	var updated *entity.Order
	err := s.withRetry(ctx, "update_line_quantity", func(ctx context.Context, orders *repo.Repository, _ *menurepo.Repository) error {
		line, err := orders.GetLine(ctx, lineID)
		if errors.Is(err, repo.ErrLineNotFound) {
			return errorbank.NotFound("order line not found")
		}
		if err != nil {
			return err
		}
		if _, err := orders.GetForUpdate(ctx, line.OrderID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errorbank.NotFound("order not found")
			}
			return err
		}
		line.SetQuantity(quantity)
		if err := orders.UpdateLine(ctx, line); err != nil {
			return err
		}
		order, err := s.recalculate(ctx, orders, line.OrderID)
		updated = order
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update line failed")
		return nil, err
	}

	s.refresh(ctx, updated)
	return updated, nil
}

func (s *Service) recalculate(ctx context.Context, orders *repo.Repository, id int64) (*entity.Order, error) {
	lines, err := orders.Lines(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := orders.UpdateTotal(ctx, id, entity.SumSubtotals(lines), s.now().UTC()); err != nil {
		return nil, err
	}
	return orders.GetByID(ctx, id)
}

// refresh replaces the cached copy and drops cached reports after an in-place repair.
func (s *Service) refresh(ctx context.Context, order *entity.Order) {
	if err := s.storeInCache(ctx, order); err != nil {
		s.warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
	s.invalidateReports(ctx)
}
