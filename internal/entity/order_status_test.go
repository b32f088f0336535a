package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitionTable(t *testing.T) {
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPending:   {OrderStatusPreparing: true, OrderStatusCancelled: true},
		OrderStatusPreparing: {OrderStatusReady: true, OrderStatusCancelled: true},
		OrderStatusReady:     {OrderStatusCompleted: true},
	}

	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			want := allowed[from][to]
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusPreparing.Cancellable())
	assert.False(t, OrderStatusReady.Cancellable())
	assert.False(t, OrderStatusCompleted.Cancellable())
	assert.False(t, OrderStatusCancelled.Cancellable())
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusReady.Terminal())
	assert.False(t, OrderStatus("unknown").Terminal())
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "preparing", "ready", "completed", "cancelled"} {
		status, ok := ParseOrderStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, s, status.String())
	}

	_, ok := ParseOrderStatus("canceled")
	assert.False(t, ok)
	_, ok = ParseOrderStatus("")
	assert.False(t, ok)
}
