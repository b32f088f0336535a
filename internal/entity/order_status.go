package entity

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusCompleted},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// RevenueStatuses are the statuses counted as earned revenue in reports.
var RevenueStatuses = []OrderStatus{OrderStatusReady, OrderStatusCompleted}

// ParseOrderStatus validates a status token.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(s)
	_, ok := orderTransitions[status]
	return status, ok
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// Terminal reports whether s has no outgoing edges.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

func (s OrderStatus) String() string {
	return string(s)
}
