package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/database/dbtest"
	accountrepo "github.com/Additional-Code/brewline/internal/repository/account"
	menurepo "github.com/Additional-Code/brewline/internal/repository/menu"
	orderrepo "github.com/Additional-Code/brewline/internal/repository/order"
	httpserver "github.com/Additional-Code/brewline/internal/server/http"
	accountsvc "github.com/Additional-Code/brewline/internal/service/account"
	menusvc "github.com/Additional-Code/brewline/internal/service/menu"
	ordersvc "github.com/Additional-Code/brewline/internal/service/order"
	reportsvc "github.com/Additional-Code/brewline/internal/service/report"
	accounttransport "github.com/Additional-Code/brewline/internal/transport/http/account"
	menutransport "github.com/Additional-Code/brewline/internal/transport/http/menu"
	ordertransport "github.com/Additional-Code/brewline/internal/transport/http/order"
	reporttransport "github.com/Additional-Code/brewline/internal/transport/http/report"
)

type envelope struct {
	Success bool            `json:"success"`
	Kind    string          `json:"kind"`
	Errors  []string        `json:"errors"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
	Meta    map[string]any  `json:"meta"`
}

type api struct {
	t        *testing.T
	e        *echo.Echo
	accounts *accountsvc.Service
}

func newAPI(t *testing.T) *api {
	t.Helper()

	cfg := config.Config{
		HTTP: config.HTTP{RequestTimeout: 5 * time.Second, AllowOrigins: []string{"*"}},
		Cache: config.Cache{
			DefaultTTL: time.Minute,
			ReportTTL:  time.Minute,
		},
		Auth: config.Auth{
			JWTSecret:       "test-secret-with-enough-length",
			Issuer:          "brewline-test",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Orders: config.Orders{
			NumberPrefix:    "CO",
			ConflictRetries: 3,
			RetryBaseDelay:  time.Millisecond,
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
	}
	logger := zap.NewNop()
	conns := dbtest.New(t)

	store, err := cache.NewMemoryStore(128, time.Minute)
	require.NoError(t, err)

	accounts := accountrepo.NewRepository(conns)
	menus := menurepo.NewRepository(conns)
	orders := orderrepo.NewRepository(conns)

	tokens := auth.NewTokens(cfg)
	revocations := auth.NewRevocations(store, accountrepo.NewRevokedTokens(conns))
	resolver := auth.NewResolver(tokens, revocations, accounts, logger)

	accountService := accountsvc.NewService(accountsvc.Params{
		Repository:  accounts,
		Orders:      orders,
		Hasher:      auth.NewHasherWithCost(4),
		Tokens:      tokens,
		Resolver:    resolver,
		Revocations: revocations,
		Logger:      logger,
	})
	menuService := menusvc.NewService(menusvc.Params{
		Connections: conns,
		Repository:  menus,
		Orders:      orders,
		Logger:      logger,
	})
	orderService := ordersvc.NewService(ordersvc.Params{
		Connections: conns,
		Repository:  orders,
		Menu:        menus,
		Accounts:    accounts,
		Cache:       store,
		Config:      cfg,
		Logger:      logger,
	})
	reportService := reportsvc.NewService(reportsvc.Params{
		Orders: orders,
		Menu:   menus,
		Cache:  store,
		Config: cfg,
		Logger: logger,
	})

	e := httpserver.NewEcho(httpserver.Params{Config: cfg, Resolver: resolver, Logger: logger})
	accounttransport.Register(e, accounttransport.NewHandler(accountService))
	menutransport.Register(e, menutransport.NewHandler(menuService))
	ordertransport.Register(e, ordertransport.NewHandler(orderService))
	reporttransport.Register(e, reporttransport.NewHandler(reportService))

	return &api{t: t, e: e, accounts: accountService}
}

func (a *api) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (a *api) register(username string) string {
	a.t.Helper()
	rec, env := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var session struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &session))
	assert.Equal(a.t, "user", session.User.Role)
	return session.AccessToken
}

func (a *api) admin() string {
	a.t.Helper()
	_, err := a.accounts.CreateAdmin(context.Background(), accountsvc.RegisterRequest{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "adminpass",
	})
	require.NoError(a.t, err)

	rec, env := a.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "admin", "password": "adminpass"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var session struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &session))
	return session.AccessToken
}

func (a *api) createMenuItem(token, name, price string) int64 {
	a.t.Helper()
	rec, env := a.do(http.MethodPost, "/menu", token, map[string]any{
		"name":     name,
		"price":    price,
		"category": "coffee",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var item struct {
		ID    int64  `json:"id"`
		Price string `json:"price"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &item))
	assert.Equal(a.t, price, item.Price)
	return item.ID
}

type orderBody struct {
	ID         int64  `json:"id"`
	Number     string `json:"order_number"`
	Status     string `json:"status"`
	TotalPrice string `json:"total_price"`
	Items      []struct {
		Quantity int    `json:"quantity"`
		Subtotal string `json:"subtotal"`
	} `json:"items"`
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	a := newAPI(t)

	rec, env := a.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "not_found", env.Kind)
}

func TestMenuGuards(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	user := a.register("alice")

	body := map[string]any{"name": "Mocha", "price": "5.00", "category": "coffee"}

	rec, env := a.do(http.MethodPost, "/menu", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Kind)

	rec, env = a.do(http.MethodPost, "/menu", user, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Kind)

	rec, env = a.do(http.MethodPost, "/menu", admin, map[string]any{"name": "Mocha", "price": "0", "category": "coffee"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Kind)
	assert.NotEmpty(t, env.Errors)

	a.createMenuItem(admin, "Mocha", "5.00")

	rec, env = a.do(http.MethodGet, "/menu", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)
	assert.Contains(t, env.Meta, "pagination")
}

func TestOrderFlow(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	alice := a.register("alice")
	bob := a.register("bobby")
	latte := a.createMenuItem(admin, "Latte", "4.50")

	rec, env := a.do(http.MethodPost, "/orders", alice, map[string]any{
		"items":         []map[string]any{{"menu_id": latte, "quantity": 2}},
		"customer_name": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created orderBody
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "9.00", created.TotalPrice)
	assert.True(t, strings.HasPrefix(created.Number, "CO"+time.Now().Format("20060102")), created.Number)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "9.00", created.Items[0].Subtotal)

	path := fmt.Sprintf("/orders/%d", created.ID)

	rec, _ = a.do(http.MethodGet, path, alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = a.do(http.MethodGet, path, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Kind)

	rec, env = a.do(http.MethodPut, path+"/status", alice, map[string]string{"status": "preparing"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Kind)

	rec, env = a.do(http.MethodPut, path+"/status", admin, map[string]string{"status": "preparing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated orderBody
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "preparing", updated.Status)

	rec, env = a.do(http.MethodPut, path+"/status", admin, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_transition", env.Kind)

	rec, env = a.do(http.MethodPut, path+"/cancel", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "cancelled", updated.Status)

	rec, env = a.do(http.MethodGet, "/orders/my", alice, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var mine []orderBody
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)

	rec, env = a.do(http.MethodGet, "/orders", bob, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var bobs []orderBody
	require.NoError(t, json.Unmarshal(env.Data, &bobs))
	assert.Empty(t, bobs)
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	alice := a.register("alice")
	latte := a.createMenuItem(admin, "Latte", "4.50")

	rec, env := a.do(http.MethodPost, "/orders", alice, map[string]any{
		"items": []map[string]any{{"menu_id": latte, "quantity": 1.5}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Kind)
	require.Contains(t, env.Details, "items")
	issues, ok := env.Details["items"].([]any)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, ordersvc.CodeInvalidQuantity, issues[0].(map[string]any)["code"])

	rec, env = a.do(http.MethodPost, "/orders", alice, map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ordersvc.CodeCartEmpty, env.Details["code"])

	rec, _ = a.do(http.MethodPost, "/orders", "", map[string]any{
		"items": []map[string]any{{"menu_id": latte, "quantity": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReportsRequireAdmin(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	alice := a.register("alice")

	rec, _ := a.do(http.MethodGet, "/orders/statistics", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := a.do(http.MethodGet, "/orders/statistics", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats struct {
		TotalOrders  int64  `json:"total_orders"`
		TotalRevenue string `json:"total_revenue"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Zero(t, stats.TotalOrders)
	assert.Equal(t, "0.00", stats.TotalRevenue)

	rec, _ = a.do(http.MethodGet, "/orders/statistics/status", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")

	rec, _ := a.do(http.MethodGet, "/auth/profile", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(http.MethodPost, "/auth/logout", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := a.do(http.MethodGet, "/auth/profile", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Kind)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newAPI(t)
	a.register("alice")

	rec, env := a.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Kind)

	rec, env = a.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Kind)
}

func TestAdminSearchAndUserStatistics(t *testing.T) {
	a := newAPI(t)
	admin := a.admin()
	alice := a.register("alice")
	a.register("bobby")
	latte := a.createMenuItem(admin, "Latte", "4.50")

	rec, _ := a.do(http.MethodPost, "/orders", alice, map[string]any{
		"items": []map[string]any{{"menu_id": latte, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = a.do(http.MethodGet, "/orders/search?q=alice", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := a.do(http.MethodGet, "/orders/search", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", env.Kind)

	rec, env = a.do(http.MethodGet, "/orders/search?q=ALICE", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var hits []struct {
		Number  string `json:"order_number"`
		Account *struct {
			Username string `json:"username"`
		} `json:"account"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &hits))
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Account)
	assert.Equal(t, "alice", hits[0].Account.Username)
	assert.Equal(t, "ALICE", env.Meta["keyword"])

	rec, _ = a.do(http.MethodGet, "/users/statistics", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = a.do(http.MethodGet, "/users/statistics", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats struct {
		Total   int `json:"total_users"`
		Admins  int `json:"admin_users"`
		Regular int `json:"regular_users"`
		Active  int `json:"active_users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Admins)
	assert.Equal(t, 2, stats.Regular)
	assert.Equal(t, 1, stats.Active)
}
