package dto

import "github.com/shopspring/decimal"

// Money renders an amount with exactly two decimal places.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
