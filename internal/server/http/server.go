package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/observability"
	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	"github.com/Additional-Code/brewline/internal/transport/http/middleware"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// Params collects NewEcho dependencies.
type Params struct {
	fx.In

	Config        config.Config
	Observability *observability.Manager `optional:"true"`
	Resolver      *auth.Resolver
	Logger        *zap.Logger
}

// NewEcho configures the Echo router with the global middleware chain. Every request is
// resolved to a caller before any handler runs; route guards decide what anonymous
// callers may reach.
func NewEcho(p Params) *echo.Echo {
	cfg, logger := p.Config, p.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	if p.Observability.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.HTTP.AllowOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{Timeout: cfg.HTTP.RequestTimeout}))
	e.Use(middleware.Authenticate(p.Resolver))

	e.GET("/health", func(c echo.Context) error {
		return response.New(c).WithData(map[string]string{"status": "ok"}).Build()
	})

	if handler := p.Observability.MetricsHandler(); handler != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(handler))
	}

	return e
}

// errorHandler renders router-level failures (unknown routes, panics, timeouts) in the
// envelope handlers use. The request logger records the cause.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		if buildErr := response.New(c).WithError(toAppError(err)).Build(); buildErr != nil {
			logger.Error("write error response", zap.Error(buildErr))
		}
	}
}

func toAppError(err error) *errorbank.AppError {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		return errorbank.Internal("internal server error", errorbank.WithCause(err))
	}

	message := http.StatusText(httpErr.Code)
	if m, ok := httpErr.Message.(string); ok && m != "" {
		message = m
	}
	switch {
	case httpErr.Code == http.StatusNotFound:
		return errorbank.NotFound(message)
	case httpErr.Code == http.StatusUnauthorized:
		return errorbank.Unauthorized(message)
	case httpErr.Code == http.StatusForbidden:
		return errorbank.Forbidden(message)
	case httpErr.Code >= http.StatusInternalServerError:
		return errorbank.Internal(message, errorbank.WithCause(err))
	default:
		return errorbank.BadRequest(message)
	}
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: cfg.HTTP.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
