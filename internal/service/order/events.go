package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/entity"
)

// Event types published on the orders topic.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Event is emitted after an order mutation commits.
type Event struct {
	ID             string             `json:"id"`
	Type           string             `json:"type"`
	OrderID        int64              `json:"order_id"`
	Number         string             `json:"order_number"`
	AccountID      int64              `json:"account_id"`
	Status         entity.OrderStatus `json:"status"`
	PreviousStatus entity.OrderStatus `json:"previous_status,omitempty"`
	TotalPrice     decimal.Decimal    `json:"total_price"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func newEvent(eventType string, order *entity.Order, previous entity.OrderStatus) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		OrderID:        order.ID,
		Number:         order.Number,
		AccountID:      order.AccountID,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalPrice:     order.TotalPrice,
		OccurredAt:     order.UpdatedAt,
	}
}

// publish sends the event and reports whether it was handed to the bus.
func (s *Service) publish(ctx context.Context, event Event) bool {
	if !s.messaging.enabled || s.publisher == nil {
		return false
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", event.Type), zap.Error(err))
		return false
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", event.OrderID)), payload); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", event.Type),
			zap.String("topic", s.messaging.topic),
			zap.Error(err),
		)
		return false
	}
	return true
}
