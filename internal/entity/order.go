package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order is a customer order. TotalPrice is cached and always equals the sum of the line
// subtotals.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            int64           `bun:",pk,autoincrement" json:"id"`
	AccountID     int64           `bun:"account_id,notnull" json:"account_id"`
	Number        string          `bun:"order_number,notnull,unique" json:"order_number"`
	Status        OrderStatus     `bun:"status,notnull" json:"status"`
	TotalPrice    decimal.Decimal `bun:"total_price,type:decimal(10,2),notnull" json:"total_price"`
	CustomerName  string          `bun:"customer_name,nullzero" json:"customer_name,omitempty"`
	CustomerPhone string          `bun:"customer_phone,nullzero" json:"customer_phone,omitempty"`
	Notes         string          `bun:"notes,nullzero" json:"notes,omitempty"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull" json:"updated_at"`

	// Lines is filled by the repository; it is never persisted through this struct.
	Lines []OrderLine `bun:"-" json:"lines,omitempty"`
}

// OrderLine is one priced (menu item, quantity) entry of an order. UnitPrice is the menu
// price captured when the order was placed.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	MenuID    int64           `bun:"menu_id,notnull" json:"menu_id"`
	Quantity  int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,type:decimal(10,2),notnull" json:"unit_price"`
	Subtotal  decimal.Decimal `bun:"subtotal,type:decimal(10,2),notnull" json:"subtotal"`
	CreatedAt time.Time       `bun:"created_at,notnull" json:"created_at"`
}

// NewOrderLine prices a line from a captured unit price.
func NewOrderLine(menuID int64, quantity int, unitPrice decimal.Decimal) OrderLine {
	return OrderLine{
		MenuID:    menuID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  LineSubtotal(unitPrice, quantity),
	}
}

// LineSubtotal returns unitPrice * quantity.
func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// SumSubtotals returns the total of the given lines.
func SumSubtotals(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// SetQuantity changes the quantity and re-derives the subtotal.
func (l *OrderLine) SetQuantity(quantity int) bool {
	if quantity <= 0 {
		return false
	}
	l.Quantity = quantity
	l.Subtotal = LineSubtotal(l.UnitPrice, quantity)
	return true
}

// IsOwnedBy reports whether the order belongs to the account.
func (o *Order) IsOwnedBy(accountID int64) bool {
	return o != nil && accountID != 0 && o.AccountID == accountID
}

// OrderSequence is the per-day counter used to number orders.
type OrderSequence struct {
	bun.BaseModel `bun:"table:order_sequences,alias:os"`

	Day       string `bun:"day,pk" json:"day"`
	LastValue int    `bun:"last_value,notnull" json:"last_value"`
}
