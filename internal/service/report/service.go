package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/entity"
	menurepo "github.com/Additional-Code/brewline/internal/repository/menu"
	orderrepo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

const (
	statisticsWindow   = 30 * 24 * time.Hour
	dailySalesDays     = 7
	defaultPopularSize = 10
	maxPopularSize     = 100

	generationKey = "reports:generation"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/brewline/service/report")

// InvalidateCache drops every cached report by rotating the generation embedded in report keys.
func InvalidateCache(ctx context.Context, store cache.Store) error {
	if store == nil {
		return nil
	}
	return store.Set(ctx, generationKey, []byte(uuid.NewString()), 0)
}

// Range is a half-open [Start, End) window. Zero bounds fall back to per-report defaults.
type Range struct {
	Start time.Time
	End   time.Time
}

// Statistics summarises orders created in a window.
type Statistics struct {
	Start             time.Time                    `json:"start"`
	End               time.Time                    `json:"end"`
	TotalOrders       int64                        `json:"total_orders"`
	TotalRevenue      decimal.Decimal              `json:"total_revenue"`
	AverageOrderValue decimal.Decimal              `json:"average_order_value"`
	StatusBreakdown   map[entity.OrderStatus]int64 `json:"status_breakdown"`
}

// DailySales is the revenue earned on one calendar day.
type DailySales struct {
	Date       string          `json:"date"`
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// PopularItem is a menu item ranked by quantity sold.
type PopularItem struct {
	Item         entity.MenuItem `json:"item"`
	QuantitySold int64           `json:"quantity_sold"`
	OrderCount   int64           `json:"order_count"`
}

// Service computes admin read models over orders.
type Service struct {
	orders *orderrepo.Repository
	menu   *menurepo.Repository
	cache  cache.Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders *orderrepo.Repository
	Menu   *menurepo.Repository
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders: p.Orders,
		menu:   p.Menu,
		cache:  p.Cache,
		ttl:    p.Config.Cache.ReportTTL,
		logger: logger,
		now:    time.Now,
	}
}

// Statistics reports totals for orders created in the window, the last 30 days by default.
// Revenue counts ready and completed orders; the average spans every order in the window.
func (s *Service) Statistics(ctx context.Context, caller auth.Caller, window Range) (*Statistics, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if window.End.IsZero() {
		window.End = s.now()
	}
	if window.Start.IsZero() {
		window.Start = window.End.Add(-statisticsWindow)
	}
	if !window.Start.Before(window.End) {
		return nil, errorbank.Validation([]string{"start must be before end"})
	}

	ctx, span := serviceTracer.Start(ctx, "ReportService.Statistics", trace.WithAttributes(
		attribute.String("range.start", window.Start.Format(time.RFC3339)),
		attribute.String("range.end", window.End.Format(time.RFC3339)),
	))
	defer span.End()

	var stats Statistics
	key := fmt.Sprintf("statistics:%d:%d", window.Start.Unix(), window.End.Unix())
	err := s.cached(ctx, key, &stats, func() error {
		orders, err := s.orders.CreatedBetween(ctx, window.Start, window.End)
		if err != nil {
			return err
		}
		stats = summarise(orders, window)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "statistics failed")
		return nil, errorbank.Internal("failed to compute statistics", errorbank.WithCause(err))
	}
	return &stats, nil
}

// DailySales returns one entry per calendar day in the window, the last 7 days by default.
// Days without revenue are reported with zero values.
func (s *Service) DailySales(ctx context.Context, caller auth.Caller, window Range) ([]DailySales, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	now := s.now()
	if window.End.IsZero() {
		window.End = startOfDay(now).AddDate(0, 0, 1)
	}
	if window.Start.IsZero() {
		window.Start = startOfDay(window.End.Add(-time.Nanosecond)).AddDate(0, 0, -(dailySalesDays - 1))
	}
	if !window.Start.Before(window.End) {
		return nil, errorbank.Validation([]string{"start must be before end"})
	}

	ctx, span := serviceTracer.Start(ctx, "ReportService.DailySales", trace.WithAttributes(
		attribute.String("range.start", window.Start.Format(time.RFC3339)),
		attribute.String("range.end", window.End.Format(time.RFC3339)),
	))
	defer span.End()

	var sales []DailySales
	key := fmt.Sprintf("daily:%d:%d", window.Start.Unix(), window.End.Unix())
	err := s.cached(ctx, key, &sales, func() error {
		orders, err := s.orders.CreatedBetween(ctx, window.Start, window.End)
		if err != nil {
			return err
		}
		sales = bucketByDay(orders, window, now.Location())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "daily sales failed")
		return nil, errorbank.Internal("failed to compute daily sales", errorbank.WithCause(err))
	}
	return sales, nil
}

// PopularItems ranks menu items by quantity sold on non-cancelled orders.
func (s *Service) PopularItems(ctx context.Context, caller auth.Caller, limit int) ([]PopularItem, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPopularSize
	}
	if limit > maxPopularSize {
		limit = maxPopularSize
	}

	ctx, span := serviceTracer.Start(ctx, "ReportService.PopularItems", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var items []PopularItem
	err := s.cached(ctx, fmt.Sprintf("popular:%d", limit), &items, func() error {
		sales, err := s.orders.PopularItems(ctx, limit)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(sales))
		for _, row := range sales {
			ids = append(ids, row.MenuID)
		}
		catalog, err := s.menu.GetByIDs(ctx, ids)
		if err != nil {
			return err
		}
		items = make([]PopularItem, 0, len(sales))
		for _, row := range sales {
			item, ok := catalog[row.MenuID]
			if !ok {
				continue
			}
			items = append(items, PopularItem{Item: item, QuantitySold: row.QuantitySold, OrderCount: row.OrderCount})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "popular items failed")
		return nil, errorbank.Internal("failed to rank menu items", errorbank.WithCause(err))
	}
	return items, nil
}

// CountsByStatus returns the number of orders currently in each status.
func (s *Service) CountsByStatus(ctx context.Context, caller auth.Caller) (map[entity.OrderStatus]int64, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "ReportService.CountsByStatus")
	defer span.End()

	var counts map[entity.OrderStatus]int64
	err := s.cached(ctx, "status-counts", &counts, func() error {
		var err error
		counts, err = s.orders.CountByStatus(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status counts failed")
		return nil, errorbank.Internal("failed to count orders", errorbank.WithCause(err))
	}
	return counts, nil
}

// cached decodes key into dst or runs compute, which must fill dst, and stores the result.
// Cache failures only cost a recomputation.
func (s *Service) cached(ctx context.Context, key string, dst any, compute func() error) error {
	if s.cache == nil {
		return compute()
	}

	generation, err := s.generation(ctx)
	if err != nil {
		s.logger.Warn("report cache generation unavailable", zap.Error(err))
		return compute()
	}
	fullKey := fmt.Sprintf("reports:%s:%s", generation, key)

	if raw, err := s.cache.Get(ctx, fullKey); err == nil {
		if err := json.Unmarshal(raw, dst); err == nil {
			return nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("report cache read failed", zap.String("key", fullKey), zap.Error(err))
	}

	if err := compute(); err != nil {
		return err
	}

	raw, err := json.Marshal(dst)
	if err != nil {
		return nil
	}
	if err := s.cache.Set(ctx, fullKey, raw, s.ttl); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", fullKey), zap.Error(err))
	}
	return nil
}

func (s *Service) generation(ctx context.Context) (string, error) {
	raw, err := s.cache.Get(ctx, generationKey)
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return "", err
	}
	generation := uuid.NewString()
	if err := s.cache.Set(ctx, generationKey, []byte(generation), 0); err != nil {
		return "", err
	}
	return generation, nil
}

func summarise(orders []entity.Order, window Range) Statistics {
	stats := Statistics{
		Start:             window.Start,
		End:               window.End,
		TotalOrders:       int64(len(orders)),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		StatusBreakdown:   make(map[entity.OrderStatus]int64, len(entity.OrderStatuses)),
	}
	for _, status := range entity.OrderStatuses {
		stats.StatusBreakdown[status] = 0
	}

	sum := decimal.Zero
	for _, o := range orders {
		stats.StatusBreakdown[o.Status]++
		sum = sum.Add(o.TotalPrice)
		if earnsRevenue(o.Status) {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalPrice)
		}
	}
	if len(orders) > 0 {
		stats.AverageOrderValue = sum.Div(decimal.NewFromInt(int64(len(orders)))).Round(2)
	}
	return stats
}

func bucketByDay(orders []entity.Order, window Range, loc *time.Location) []DailySales {
	index := make(map[string]int)
	var days []DailySales
	for day := startOfDay(window.Start.In(loc)); day.Before(window.End); day = day.AddDate(0, 0, 1) {
		date := day.Format(time.DateOnly)
		index[date] = len(days)
		days = append(days, DailySales{Date: date, Revenue: decimal.Zero})
	}

	for _, o := range orders {
		if !earnsRevenue(o.Status) {
			continue
		}
		i, ok := index[o.CreatedAt.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].OrderCount++
		days[i].Revenue = days[i].Revenue.Add(o.TotalPrice)
	}
	if days == nil {
		days = []DailySales{}
	}
	return days
}

func earnsRevenue(status entity.OrderStatus) bool {
	for _, s := range entity.RevenueStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
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
