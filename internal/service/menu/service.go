package menu

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
	repo "github.com/Additional-Code/brewline/internal/repository/menu"
	orderrepo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/internal/service/paging"
	"github.com/Additional-Code/brewline/internal/validation"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

const (
	maxNameLen        = 100
	maxCategoryLen    = 50
	maxDescriptionLen = 1000

	defaultPageSize    = 20
	maxPageSize        = 100
	defaultPopularSize = 6
)

var (
	maxPrice      = decimal.RequireFromString("999999.99")
	serviceTracer = otel.Tracer("github.com/Additional-Code/brewline/service/menu")
)

// Service manages the catalog.
type Service struct {
	conns  *database.Connections
	repo   *repo.Repository
	orders *orderrepo.Repository
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Connections *database.Connections
	Repository  *repo.Repository
	Orders      *orderrepo.Repository
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		conns:  p.Connections,
		repo:   p.Repository,
		orders: p.Orders,
		logger: logger,
		now:    time.Now,
	}
}

// ListFilter narrows catalog listings. A nil AvailableOnly means available items only.
type ListFilter struct {
	AvailableOnly *bool
	Category      string
	Keyword       string
	Page          paging.Request
}

// CreateRequest describes a new menu item. A nil IsAvailable creates the item available.
type CreateRequest struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImageURL    string
	IsAvailable *bool
	IsPopular   bool
	Tags        []string
}

// Patch names the mutable fields of a menu item; nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	ImageURL    *string
	IsAvailable *bool
	IsPopular   *bool
	Tags        *[]string
}

// List returns a page of the catalog sorted by category then name.
func (s *Service) List(ctx context.Context, filter ListFilter) (paging.Result[entity.MenuItem], error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.List")
	defer span.End()

	availableOnly := true
	if filter.AvailableOnly != nil {
		availableOnly = *filter.AvailableOnly
	}
	page := filter.Page.Normalize(defaultPageSize, maxPageSize)

	items, total, err := s.repo.List(ctx, repo.ListFilter{
		AvailableOnly: availableOnly,
		Category:      strings.TrimSpace(filter.Category),
		Keyword:       filter.Keyword,
		Limit:         page.PerPage,
		Offset:        page.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return paging.Result[entity.MenuItem]{}, errorbank.Internal("failed to list menu items", errorbank.WithCause(err))
	}
	return paging.NewResult(items, total, page), nil
}

// Get returns a single menu item.
func (s *Service) Get(ctx context.Context, id int64) (*entity.MenuItem, error) {
	ctx, span := serviceTracer.Start(ctx, "MenuService.Get", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(span, err)
	}
	return item, nil
}

// Categories returns the distinct categories in use.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to load categories", errorbank.WithCause(err))
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// Popular returns available items flagged as popular.
func (s *Service) Popular(ctx context.Context, limit int) ([]entity.MenuItem, error) {
	if limit <= 0 {
		limit = defaultPopularSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	items, _, err := s.repo.List(ctx, repo.ListFilter{AvailableOnly: true, PopularOnly: true, Limit: limit})
	if err != nil {
		return nil, errorbank.Internal("failed to load popular items", errorbank.WithCause(err))
	}
	if items == nil {
		items = []entity.MenuItem{}
	}
	return items, nil
}

// Create adds a menu item. Admin only.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (*entity.MenuItem, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "MenuService.Create")
	defer span.End()

	now := s.now().UTC()
	item := &entity.MenuItem{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		IsAvailable: true,
		IsPopular:   req.IsPopular,
		Tags:        normaliseTags(req.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.Category == "" {
		item.Category = entity.DefaultCategory
	}
	if req.IsAvailable != nil {
		item.IsAvailable = *req.IsAvailable
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, errorbank.Internal("failed to create menu item", errorbank.WithCause(err))
	}
	s.logger.Info("menu item created", zap.Int64("id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// Update applies patch to a menu item. Admin only.
func (s *Service) Update(ctx context.Context, caller auth.Caller, id int64, patch Patch) (*entity.MenuItem, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "MenuService.Update", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(span, err)
	}

	patch.apply(item)
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.mapRepoError(span, err)
	}
	return item, nil
}

// ToggleAvailability flips whether the item can be ordered. Admin only.
func (s *Service) ToggleAvailability(ctx context.Context, caller auth.Caller, id int64) (*entity.MenuItem, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "MenuService.ToggleAvailability", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(span, err)
	}
	item.IsAvailable = !item.IsAvailable
	item.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, s.mapRepoError(span, err)
	}
	s.logger.Info("menu item availability changed", zap.Int64("id", id), zap.Bool("available", item.IsAvailable))
	return item, nil
}

// Delete removes a menu item that no order line references. Admin only.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	ctx, span := serviceTracer.Start(ctx, "MenuService.Delete", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	err := s.conns.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		referenced, err := s.orders.WithTx(tx).ExistsForMenuItem(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return errorbank.Conflict("menu item is referenced by existing orders")
		}
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		var appErr *errorbank.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return s.mapRepoError(span, err)
	}
	s.logger.Info("menu item deleted", zap.Int64("id", id))
	return nil
}

func (s *Service) mapRepoError(span trace.Span, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return errorbank.NotFound("menu item not found")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal("menu storage failure", errorbank.WithCause(err))
}

func (p Patch) apply(item *entity.MenuItem) {
	if p.Name != nil {
		item.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		item.Description = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Category != nil {
		item.Category = strings.TrimSpace(*p.Category)
	}
	if p.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.IsAvailable != nil {
		item.IsAvailable = *p.IsAvailable
	}
	if p.IsPopular != nil {
		item.IsPopular = *p.IsPopular
	}
	if p.Tags != nil {
		item.Tags = normaliseTags(*p.Tags)
	}
}

func validateItem(item *entity.MenuItem) error {
	v := validation.New()
	if v.Required("name", item.Name) {
		v.MaxLen("name", item.Name, maxNameLen)
	}
	if v.Required("category", item.Category) {
		v.MaxLen("category", item.Category, maxCategoryLen)
	}
	v.MaxLen("description", item.Description, maxDescriptionLen)

	switch {
	case !item.Price.IsPositive():
		v.Add("price must be greater than 0")
	case item.Price.GreaterThan(maxPrice):
		v.Add("price must not exceed %s", maxPrice.StringFixed(2))
	case !item.Price.Equal(item.Price.Round(2)):
		v.Add("price must have at most 2 decimal places")
	}
	return v.Err()
}

func normaliseTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
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
