package account

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/brewline/internal/dto"
	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	service "github.com/Additional-Code/brewline/internal/service/account"
	"github.com/Additional-Code/brewline/internal/transport/http/middleware"
	"github.com/Additional-Code/brewline/internal/transport/http/request"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/brewline/transport/http/account")

// Handler exposes authentication, profile and account administration endpoints.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an account Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	a := e.Group("/auth")
	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/refresh", h.refresh)
	a.GET("/profile", h.profile, middleware.RequireAuth)
	a.PUT("/profile", h.updateProfile, middleware.RequireAuth)
	a.POST("/change-password", h.changePassword, middleware.RequireAuth)
	a.POST("/logout", h.logout, middleware.RequireAuth)

	u := e.Group("/users")
	u.GET("", h.list, middleware.RequireAdmin)
	u.GET("/statistics", h.statistics, middleware.RequireAdmin)
	u.GET("/:id", h.get, middleware.RequireAdmin)
	u.PUT("/:id", h.update, middleware.RequireAdmin)
	u.DELETE("/:id", h.delete, middleware.RequireAdmin)
	u.POST("/:id/reset-password", h.resetPassword, middleware.RequireAdmin)
	u.PATCH("/:id/toggle-status", h.toggleStatus, middleware.RequireAdmin)
}

func (h *Handler) register(c echo.Context) error {
	b := response.New(c)

	var payload dto.RegisterRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.register")
	defer span.End()

	session, err := h.svc.Register(ctx, service.RegisterRequest{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Phone:    payload.Phone,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(sessionResponse(session)).Build()
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)

	var payload dto.LoginRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if payload.Login() == "" || payload.Password == "" {
		return b.WithError(errorbank.Validation([]string{"username and password are required"})).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.login")
	defer span.End()

	session, err := h.svc.Login(ctx, payload.Login(), payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(sessionResponse(session)).Build()
}

// refresh accepts the refresh token in the body or as a bearer token.
func (h *Handler) refresh(c echo.Context) error {
	b := response.New(c)

	var payload dto.RefreshRequest
	if c.Request().ContentLength > 0 {
		if err := request.Bind(c, &payload); err != nil {
			return b.WithError(err).Build()
		}
	}
	token := payload.RefreshToken
	if token == "" {
		token = middleware.BearerToken(c)
	}
	if token == "" {
		return b.WithError(errorbank.Unauthorized("refresh token required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.refresh")
	defer span.End()

	pair, err := h.svc.Refresh(ctx, token)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(pair).Build()
}

func (h *Handler) profile(c echo.Context) error {
	b := response.New(c)
	profile, err := h.svc.Profile(c.Request().Context(), middleware.Caller(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProfileResponse(profile.Account, profile.OrderCount, profile.TotalSpent)).Build()
}

func (h *Handler) updateProfile(c echo.Context) error {
	b := response.New(c)

	var payload dto.ProfileRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.updateProfile")
	defer span.End()

	account, err := h.svc.UpdateProfile(ctx, middleware.Caller(c), service.ProfilePatch{
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewAccountResponse(account)).Build()
}

func (h *Handler) changePassword(c echo.Context) error {
	b := response.New(c)

	var payload dto.ChangePasswordRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.changePassword")
	defer span.End()

	if err := h.svc.ChangePassword(ctx, middleware.Caller(c), payload.OldPassword, payload.NewPassword); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"message": "password changed"}).Build()
}

func (h *Handler) logout(c echo.Context) error {
	b := response.New(c)
	if err := h.svc.Logout(c.Request().Context(), middleware.Caller(c), middleware.Claims(c)); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"message": "logged out"}).Build()
}

func (h *Handler) statistics(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "users.statistics")
	defer span.End()

	stats, err := h.svc.Statistics(ctx, middleware.Caller(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.AccountStatisticsResponse{
		TotalUsers:    stats.Total,
		AdminUsers:    stats.Admins,
		RegularUsers:  stats.Users,
		TodayNewUsers: stats.NewToday,
		WeekNewUsers:  stats.NewThisWeek,
		ActiveUsers:   stats.WithOrders,
	}).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	page, err := request.Page(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.list")
	defer span.End()

	result, err := h.svc.List(ctx, middleware.Caller(c), service.ListFilter{
		Role:    c.QueryParam("role"),
		Keyword: c.QueryParam("keyword"),
		Page:    page,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewAccountResponses(result.Items)).
		WithPagination(result.Page, result.PerPage, result.Total).
		Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.get", accountAttr(id))
	defer span.End()

	profile, err := h.svc.Get(ctx, middleware.Caller(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewProfileResponse(profile.Account, profile.OrderCount, profile.TotalSpent)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.AdminAccountRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.update", accountAttr(id))
	defer span.End()

	account, err := h.svc.Update(ctx, middleware.Caller(c), id, service.AdminPatch{
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Role:     payload.Role,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewAccountResponse(account)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.delete", accountAttr(id))
	defer span.End()

	if err := h.svc.Delete(ctx, middleware.Caller(c), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int64{"id": id}).Build()
}

func (h *Handler) resetPassword(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.ResetPasswordRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.resetPassword", accountAttr(id))
	defer span.End()

	if err := h.svc.ResetPassword(ctx, middleware.Caller(c), id, payload.NewPassword); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]string{"message": "password reset"}).Build()
}

func (h *Handler) toggleStatus(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "users.toggleStatus", accountAttr(id))
	defer span.End()

	account, err := h.svc.ToggleActive(ctx, middleware.Caller(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewAccountResponse(account)).Build()
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Account:      dto.NewAccountResponse(session.Account),
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
		TokenType:    session.Tokens.TokenType,
		ExpiresIn:    session.Tokens.ExpiresIn,
	}
}

func accountAttr(id int64) trace.SpanStartOption {
	return trace.WithAttributes(attribute.Int64("account.id", id))
}
