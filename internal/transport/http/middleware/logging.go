package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// RequestLogger writes one structured line per request. Internal errors are logged with
// their cause, which never reaches the response body.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if caller := Caller(c); caller.IsAuthenticated() {
				fields = append(fields, zap.Int64("account_id", caller.AccountID))
			}

			level := zapcore.InfoLevel
			if appErr, ok := c.Get(response.ErrorContextKey).(*errorbank.AppError); ok {
				level = zapcore.ErrorLevel
				fields = append(fields, zap.NamedError("cause", appErr.Unwrap()))
			}
			if v.Error != nil {
				level = zapcore.ErrorLevel
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Log(level, "http request", fields...)
			return nil
		},
	})
}
