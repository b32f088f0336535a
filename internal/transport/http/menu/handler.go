package menu

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/brewline/internal/dto"
	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	service "github.com/Additional-Code/brewline/internal/service/menu"
	"github.com/Additional-Code/brewline/internal/transport/http/middleware"
	"github.com/Additional-Code/brewline/internal/transport/http/request"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/brewline/transport/http/menu")

// Handler exposes catalog endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a menu Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/menu")
	g.GET("", h.list)
	g.GET("/categories", h.categories)
	g.GET("/popular", h.popular)
	g.GET("/:id", h.get)
	g.POST("", h.create, middleware.RequireAdmin)
	g.PUT("/:id", h.update, middleware.RequireAdmin)
	g.DELETE("/:id", h.delete, middleware.RequireAdmin)
	g.PATCH("/:id/toggle", h.toggle, middleware.RequireAdmin)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	page, err := request.Page(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	availableOnly, err := request.Bool(c, "available_only")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.list")
	defer span.End()

	result, err := h.svc.List(ctx, service.ListFilter{
		AvailableOnly: availableOnly,
		Category:      c.QueryParam("category"),
		Keyword:       c.QueryParam("keyword"),
		Page:          page,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewMenuItemResponses(result.Items)).
		WithPagination(result.Page, result.PerPage, result.Total).
		Build()
}

func (h *Handler) categories(c echo.Context) error {
	b := response.New(c)
	categories, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(categories).Build()
}

func (h *Handler) popular(c echo.Context) error {
	b := response.New(c)

	limit, err := request.Int(c, "limit")
	if err != nil {
		return b.WithError(err).Build()
	}
	items, err := h.svc.Popular(c.Request().Context(), limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewMenuItemResponses(items)).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.get", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewMenuItemResponse(item)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.MenuItemRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.create")
	defer span.End()

	item, err := h.svc.Create(ctx, middleware.Caller(c), toCreateRequest(payload))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewMenuItemResponse(item)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.MenuItemRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.update", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item, err := h.svc.Update(ctx, middleware.Caller(c), id, service.Patch{
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		Category:    payload.Category,
		ImageURL:    payload.ImageURL,
		IsAvailable: payload.IsAvailable,
		IsPopular:   payload.IsPopular,
		Tags:        payload.Tags,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewMenuItemResponse(item)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.delete", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, middleware.Caller(c), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int64{"id": id}).Build()
}

func (h *Handler) toggle(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "menu.toggle", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item, err := h.svc.ToggleAvailability(ctx, middleware.Caller(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewMenuItemResponse(item)).Build()
}

func toCreateRequest(payload dto.MenuItemRequest) service.CreateRequest {
	req := service.CreateRequest{IsAvailable: payload.IsAvailable}
	if payload.Name != nil {
		req.Name = *payload.Name
	}
	if payload.Description != nil {
		req.Description = *payload.Description
	}
	if payload.Price != nil {
		req.Price = *payload.Price
	}
	if payload.Category != nil {
		req.Category = *payload.Category
	}
	if payload.ImageURL != nil {
		req.ImageURL = *payload.ImageURL
	}
	if payload.IsPopular != nil {
		req.IsPopular = *payload.IsPopular
	}
	if payload.Tags != nil {
		req.Tags = *payload.Tags
	}
	return req
}
