package order

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/dto"
	"github.com/Additional-Code/brewline/internal/entity"
	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	service "github.com/Additional-Code/brewline/internal/service/order"
	"github.com/Additional-Code/brewline/internal/service/paging"
	"github.com/Additional-Code/brewline/internal/transport/http/middleware"
	"github.com/Additional-Code/brewline/internal/transport/http/request"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/brewline/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create, middleware.RequireAuth)
	g.GET("", h.list, middleware.RequireAuth)
	g.GET("/my", h.listMine, middleware.RequireAuth)
	g.GET("/recent", h.recent, middleware.RequireAdmin)
	g.GET("/search", h.search, middleware.RequireAdmin)
	g.GET("/:id", h.getByID, middleware.RequireAuth)
	g.PUT("/:id/status", h.updateStatus, middleware.RequireAdmin)
	g.PUT("/:id/cancel", h.cancel, middleware.RequireAuth)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int("order.lines", len(payload.Items)),
	))
	defer span.End()

	order, err := h.svc.Create(ctx, middleware.Caller(c), toCreateRequest(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order, nil)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	detail, err := h.svc.Get(ctx, middleware.Caller(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(detail.Order, detail.Owner)).Build()
}

func (h *Handler) list(c echo.Context) error {
	return h.listWith(c, "orders.list", h.svc.List)
}

func (h *Handler) listMine(c echo.Context) error {
	return h.listWith(c, "orders.listMine", h.svc.ListMine)
}

type lister func(ctx context.Context, caller auth.Caller, filter service.ListFilter) (paging.Result[entity.Order], error)

func (h *Handler) listWith(c echo.Context, name string, fn lister) error {
	b := response.New(c)

	page, err := request.Page(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), name)
	defer span.End()

	result, err := fn(ctx, middleware.Caller(c), service.ListFilter{Status: c.QueryParam("status"), Page: page})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(result.Items)).
		WithPagination(result.Page, result.PerPage, result.Total).
		Build()
}

func (h *Handler) recent(c echo.Context) error {
	b := response.New(c)

	limit, err := request.Int(c, "limit")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.recent")
	defer span.End()

	orders, err := h.svc.Recent(ctx, middleware.Caller(c), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).Build()
}

func (h *Handler) search(c echo.Context) error {
	b := response.New(c)

	page, err := request.Page(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	query := c.QueryParam("q")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.search")
	defer span.End()

	result, err := h.svc.Search(ctx, middleware.Caller(c), service.SearchFilter{Query: query, Page: page})
	if err != nil {
		return b.WithError(err).Build()
	}
	items := make([]dto.OrderResponse, 0, len(result.Items))
	for _, detail := range result.Items {
		items = append(items, dto.NewOrderResponse(detail.Order, detail.Owner))
	}
	return b.WithData(items).
		WithMeta("keyword", query).
		WithPagination(result.Page, result.PerPage, result.Total).
		Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateOrderStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.Validation([]string{"status is required"})).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, middleware.Caller(c), id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order, nil)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, middleware.Caller(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order, nil)).Build()
}

// toCreateRequest converts the wire payload. Quantities that are not whole numbers become
// zero and are rejected by the service as invalid.
func toCreateRequest(payload dto.CreateOrderRequest) service.CreateRequest {
	items := make([]service.LineRequest, 0, len(payload.Items))
	for _, item := range payload.Items {
		quantity, err := item.Quantity.Int64()
		if err != nil || quantity > int64(maxQuantity) {
			quantity = 0
		}
		items = append(items, service.LineRequest{MenuID: item.MenuID, Quantity: int(quantity)})
	}
	return service.CreateRequest{
		Items:         items,
		CustomerName:  payload.CustomerName,
		CustomerPhone: payload.CustomerPhone,
		Notes:         payload.Notes,
	}
}

const maxQuantity = 1 << 30
