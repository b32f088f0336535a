package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
	"github.com/Additional-Code/brewline/internal/messaging"
	accountrepo "github.com/Additional-Code/brewline/internal/repository/account"
	menurepo "github.com/Additional-Code/brewline/internal/repository/menu"
	repo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/internal/service/paging"
	"github.com/Additional-Code/brewline/internal/service/report"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/brewline/service/order")

// Service is the order engine: creation, status transitions and total maintenance.
type Service struct {
	conns     *database.Connections
	repo      *repo.Repository
	menu      *menurepo.Repository
	accounts  *accountrepo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	orders    config.Orders
	metrics   *engineMetrics
	now       func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Repository  *repo.Repository
	Menu        *menurepo.Repository
	Accounts    *accountrepo.Repository
	Cache       cache.Store
	Config      config.Config
	Logger      *zap.Logger
	Publisher   messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		conns:     p.Connections,
		repo:      p.Repository,
		menu:      p.Menu,
		accounts:  p.Accounts,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		orders:  p.Config.Orders,
		metrics: newEngineMetrics(logger),
		now:     time.Now,
	}
}

// Detail is an order as shown to a caller. Owner is only filled for admin readers.
type Detail struct {
	Order *entity.Order
	Owner *entity.Account
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status string
	Page   paging.Request
}

// Get returns an order visible to caller. Orders the caller may not see are reported as
// missing so their existence is not revealed.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id int64) (*Detail, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if !caller.IsAuthenticated() {
		return nil, errorbank.Unauthorized("authentication required")
	}

	order, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	if !caller.CanAccess(order.AccountID) {
		return nil, errorbank.NotFound("order not found")
	}

	detail := &Detail{Order: order}
	if caller.IsAdmin() {
		owner, err := s.accounts.GetByID(ctx, order.AccountID)
		switch {
		case err == nil:
			detail.Owner = owner
		case errors.Is(err, accountrepo.ErrNotFound):
		default:
			s.warn("order owner lookup failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// List returns every order for admins and the caller's own orders otherwise.
func (s *Service) List(ctx context.Context, caller auth.Caller, filter ListFilter) (paging.Result[entity.Order], error) {
	if !caller.IsAuthenticated() {
		return paging.Result[entity.Order]{}, errorbank.Unauthorized("authentication required")
	}
	var accountID int64
	if !caller.IsAdmin() {
		accountID = caller.AccountID
	}
	return s.list(ctx, accountID, filter)
}

// ListMine returns the caller's own orders regardless of role.
func (s *Service) ListMine(ctx context.Context, caller auth.Caller, filter ListFilter) (paging.Result[entity.Order], error) {
	if !caller.IsAuthenticated() {
		return paging.Result[entity.Order]{}, errorbank.Unauthorized("authentication required")
	}
	return s.list(ctx, caller.AccountID, filter)
}

// Recent returns the newest orders across all accounts. Admin only.
func (s *Service) Recent(ctx context.Context, caller auth.Caller, limit int) ([]entity.Order, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Recent", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	limit = paging.Request{Page: 1, PerPage: limit}.Normalize(s.orders.DefaultPageSize, s.orders.MaxPageSize).PerPage
	orders, err := s.repo.Recent(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load recent orders", errorbank.WithCause(err))
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	return orders, nil
}

func (s *Service) list(ctx context.Context, accountID int64, filter ListFilter) (paging.Result[entity.Order], error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(attribute.Int64("account.id", accountID)))
	defer span.End()

	var status entity.OrderStatus
	if filter.Status != "" {
		parsed, ok := entity.ParseOrderStatus(filter.Status)
		if !ok {
			return paging.Result[entity.Order]{}, errorbank.Validation([]string{fmt.Sprintf("invalid status: %s", filter.Status)})
		}
		status = parsed
	}

	page := filter.Page.Normalize(s.orders.DefaultPageSize, s.orders.MaxPageSize)
	orders, total, err := s.repo.List(ctx, repo.ListFilter{
		AccountID: accountID,
		Status:    status,
		Limit:     page.PerPage,
		Offset:    page.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return paging.Result[entity.Order]{}, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return paging.NewResult(orders, total, page), nil
}

// load reads an order with its lines, consulting the cache first.
func (s *Service) load(ctx context.Context, id int64) (*entity.Order, error) {
	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// withRetry runs fn in a writer transaction, retrying persistence conflicts with
// exponential backoff. Conflicts that outlive the retry budget become internal errors.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context, orders *repo.Repository, menu *menurepo.Repository) error) error {
	backoff := retry.WithMaxRetries(uint64(s.orders.ConflictRetries), retry.NewExponential(s.orders.RetryBaseDelay))
	backoff = retry.WithJitterPercent(20, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, s.repo.WithTx(tx), s.menu.WithTx(tx))
		})
		if database.IsConflict(err) {
			s.metrics.conflict(ctx, op)
			s.logger.Debug("order transaction conflict; retrying", zap.String("op", op), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}

	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if database.IsConflict(err) {
		return errorbank.Internal("order is busy, please retry", errorbank.WithCause(err))
	}
	return errorbank.Internal("order transaction failed", errorbank.WithCause(err))
}

// afterWrite refreshes caches and notifies listeners once a transaction committed.
func (s *Service) afterWrite(ctx context.Context, order *entity.Order, event Event) {
	if err := s.storeInCache(ctx, order); err != nil {
		s.warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
	if !s.publish(ctx, event) {
		s.invalidateReports(ctx)
	}
}

// invalidateReports drops cached aggregates directly when no worker will see an event.
func (s *Service) invalidateReports(ctx context.Context) {
	if err := report.InvalidateCache(ctx, s.cache); err != nil {
		s.warn("report cache invalidation failed", zap.Error(err))
	}
}

// CacheKey is the cache entry holding order id with its lines.
func CacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, CacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, CacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) warn(msg string, fields ...zap.Field) {
	s.logger.Warn(msg, fields...)
}

func requireAdmin(caller auth.Caller) error {
	if !caller.IsAuthenticated() {
		return errorbank.Unauthorized("authentication required")
	}
	if !caller.IsAdmin() {
		return errorbank.Forbidden("admin privileges required")
	}
	return nil
}
