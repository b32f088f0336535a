package dto

import (
	"encoding/json"
	"time"

	"github.com/Additional-Code/brewline/internal/entity"
)

// OrderLineRequest is one requested line. Quantity is kept as a raw number so fractional or
// otherwise non-integral values can be reported as invalid quantities instead of bad JSON.
type OrderLineRequest struct {
	MenuID   int64       `json:"menu_id"`
	Quantity json.Number `json:"quantity"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Items         []OrderLineRequest `json:"items"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	Notes         string             `json:"notes"`
}

// UpdateOrderStatusRequest is the body of PUT /orders/:id/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderLineResponse is an order line as exposed via transport layers.
type OrderLineResponse struct {
	ID        int64     `json:"id"`
	MenuID    int64     `json:"menu_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID            int64               `json:"id"`
	Number        string              `json:"order_number"`
	AccountID     int64               `json:"account_id"`
	Status        string              `json:"status"`
	TotalPrice    string              `json:"total_price"`
	CustomerName  string              `json:"customer_name,omitempty"`
	CustomerPhone string              `json:"customer_phone,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	Items         []OrderLineResponse `json:"items"`
	Account       *AccountResponse    `json:"account,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewOrderResponse converts an order. owner is optional.
func NewOrderResponse(order *entity.Order, owner *entity.Account) OrderResponse {
	items := make([]OrderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, OrderLineResponse{
			ID:        line.ID,
			MenuID:    line.MenuID,
			Quantity:  line.Quantity,
			UnitPrice: Money(line.UnitPrice),
			Subtotal:  Money(line.Subtotal),
			CreatedAt: line.CreatedAt,
		})
	}

	resp := OrderResponse{
		ID:            order.ID,
		Number:        order.Number,
		AccountID:     order.AccountID,
		Status:        order.Status.String(),
		TotalPrice:    Money(order.TotalPrice),
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		Notes:         order.Notes,
		Items:         items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if owner != nil {
		account := NewAccountResponse(owner)
		resp.Account = &account
	}
	return resp
}

// NewOrderResponses converts a slice of orders.
func NewOrderResponses(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i], nil))
	}
	return out
}
