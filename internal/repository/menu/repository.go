package menu

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/brewline/repository/menu")

// ErrNotFound is returned when a menu item is missing.
var ErrNotFound = errors.New("menu item not found")

// Repository encapsulates read/write access for menu items.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a repository whose reads and writes all go through tx.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx}
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	AvailableOnly bool
	PopularOnly   bool
	Category      string
	Keyword       string
	Limit         int
	Offset        int
}

// List returns a page of menu items sorted by category then name, with the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entity.MenuItem, int, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.List", trace.WithAttributes(
		attribute.Bool("menu.available_only", filter.AvailableOnly),
		attribute.String("menu.category", filter.Category),
	))
	defer span.End()

	var items []entity.MenuItem
	q := r.reader.NewSelect().Model(&items)
	if filter.AvailableOnly {
		q = q.Where("m.is_available = ?", true)
	}
	if filter.PopularOnly {
		q = q.Where("m.is_popular = ?", true)
	}
	if filter.Category != "" {
		q = q.Where("m.category = ?", filter.Category)
	}
	if kw := strings.ToLower(strings.TrimSpace(filter.Keyword)); kw != "" {
		pattern := "%" + kw + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(m.name) LIKE ?", pattern).
				WhereOr("LOWER(m.description) LIKE ?", pattern).
				WhereOr("LOWER(m.category) LIKE ?", pattern)
		})
	}
	q = q.Order("m.category ASC", "m.name ASC", "m.id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return items, total, nil
}

// GetByID fetches a menu item by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.GetByID", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	item := new(entity.MenuItem)
	err := r.reader.NewSelect().Model(item).Where("m.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return item, nil
}

// GetByIDs returns the items found for ids keyed by id. Missing ids are simply absent.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]entity.MenuItem, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.GetByIDs", trace.WithAttributes(attribute.Int("menu.ids", len(ids))))
	defer span.End()

	found := make(map[int64]entity.MenuItem, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var items []entity.MenuItem
	err := r.reader.NewSelect().Model(&items).Where("m.id IN (?)", bun.In(ids)).Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	for _, item := range items {
		found[item.ID] = item
	}
	return found, nil
}

// Categories returns the distinct categories in use, sorted.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.Categories")
	defer span.End()

	var categories []string
	err := r.reader.NewSelect().
		Model((*entity.MenuItem)(nil)).
		ColumnExpr("DISTINCT m.category").
		Order("m.category ASC").
		Scan(ctx, &categories)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return categories, nil
}

// Create persists a new menu item.
func (r *Repository) Create(ctx context.Context, item *entity.MenuItem) error {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.Create", trace.WithAttributes(attribute.String("menu.name", item.Name)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(item).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update stores every mutable column of item.
func (r *Repository) Update(ctx context.Context, item *entity.MenuItem) error {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.Update", trace.WithAttributes(attribute.Int64("menu.id", item.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(item).
		Column("name", "description", "price", "category", "image_url", "is_available", "is_popular", "tags", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a menu item.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.Delete", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.MenuItem)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
