// Package middleware holds the echo middleware shared by every HTTP handler.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/presentation/http/response"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

const (
	callerKey = "auth.caller"
	claimsKey = "auth.claims"
)

// Authenticate resolves the bearer token on every request. Requests without a valid
// token continue as anonymous; guards decide whether that is acceptable.
func Authenticate(resolver *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, claims := resolver.Resolve(c.Request().Context(), BearerToken(c))
			c.Set(callerKey, caller)
			if claims != nil {
				c.Set(claimsKey, claims)
			}
			return next(c)
		}
	}
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !Caller(c).IsAuthenticated() {
			return response.New(c).WithError(errorbank.Unauthorized("authentication required")).Build()
		}
		return next(c)
	}
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller := Caller(c)
		if !caller.IsAuthenticated() {
			return response.New(c).WithError(errorbank.Unauthorized("authentication required")).Build()
		}
		if !caller.IsAdmin() {
			return response.New(c).WithError(errorbank.Forbidden("admin privileges required")).Build()
		}
		return next(c)
	}
}

// Caller returns the resolved caller, or Anonymous when none was set.
func Caller(c echo.Context) auth.Caller {
	if caller, ok := c.Get(callerKey).(auth.Caller); ok {
		return caller
	}
	return auth.Anonymous()
}

// Claims returns the verified access token claims, if any.
func Claims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
