package report

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/brewline/internal/dto"
	"github.com/Additional-Code/brewline/internal/entity"
	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	service "github.com/Additional-Code/brewline/internal/service/report"
	"github.com/Additional-Code/brewline/internal/transport/http/middleware"
	"github.com/Additional-Code/brewline/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/brewline/transport/http/report")

// Handler exposes admin sales reports.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a report Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance. Echo matches these static paths ahead of
// the order group's /orders/:id.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/orders/statistics", h.statistics, middleware.RequireAdmin)
	e.GET("/orders/statistics/popular", h.popular, middleware.RequireAdmin)
	e.GET("/orders/statistics/status", h.byStatus, middleware.RequireAdmin)
	e.GET("/orders/sales/daily", h.dailySales, middleware.RequireAdmin)
}

func (h *Handler) statistics(c echo.Context) error {
	b := response.New(c)

	start, end, err := request.DateRange(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reports.statistics")
	defer span.End()

	stats, err := h.svc.Statistics(ctx, middleware.Caller(c), service.Range{Start: start, End: end})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.StatisticsResponse{
		Start:             stats.Start,
		End:               stats.End,
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      dto.Money(stats.TotalRevenue),
		AverageOrderValue: dto.Money(stats.AverageOrderValue),
		StatusBreakdown:   statusCounts(stats.StatusBreakdown),
	}).Build()
}

func (h *Handler) dailySales(c echo.Context) error {
	b := response.New(c)

	start, end, err := request.DateRange(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reports.dailySales")
	defer span.End()

	days, err := h.svc.DailySales(ctx, middleware.Caller(c), service.Range{Start: start, End: end})
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.DailySalesResponse, 0, len(days))
	for _, day := range days {
		out = append(out, dto.DailySalesResponse{
			Date:       day.Date,
			OrderCount: day.OrderCount,
			Revenue:    dto.Money(day.Revenue),
		})
	}
	return b.WithData(out).Build()
}

func (h *Handler) popular(c echo.Context) error {
	b := response.New(c)

	limit, err := request.Int(c, "limit")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "reports.popular")
	defer span.End()

	items, err := h.svc.PopularItems(ctx, middleware.Caller(c), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.PopularItemResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.PopularItemResponse{
			MenuItemResponse: dto.NewMenuItemResponse(&items[i].Item),
			QuantitySold:     items[i].QuantitySold,
			OrderCount:       items[i].OrderCount,
		})
	}
	return b.WithData(out).Build()
}

func (h *Handler) byStatus(c echo.Context) error {
	b := response.New(c)
	counts, err := h.svc.CountsByStatus(c.Request().Context(), middleware.Caller(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(statusCounts(counts)).Build()
}

func statusCounts(counts map[entity.OrderStatus]int64) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[status.String()] = n
	}
	return out
}
