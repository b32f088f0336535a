package dto

import "time"

// StatisticsResponse summarises orders in a window.
type StatisticsResponse struct {
	Start             time.Time        `json:"start_date"`
	End               time.Time        `json:"end_date"`
	TotalOrders       int64            `json:"total_orders"`
	TotalRevenue      string           `json:"total_revenue"`
	AverageOrderValue string           `json:"average_order_value"`
	StatusBreakdown   map[string]int64 `json:"status_breakdown"`
}

// DailySalesResponse is one day of revenue.
type DailySalesResponse struct {
	Date       string `json:"date"`
	OrderCount int64  `json:"order_count"`
	Revenue    string `json:"revenue"`
}

// PopularItemResponse is a menu item ranked by quantity sold.
type PopularItemResponse struct {
	MenuItemResponse
	QuantitySold int64 `json:"total_quantity"`
	OrderCount   int64 `json:"order_count"`
}
