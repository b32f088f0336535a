package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/brewline/repository/account")

// ErrNotFound is returned when an account is missing.
var ErrNotFound = errors.New("account not found")

// Repository encapsulates read/write access for accounts.
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

// ListFilter narrows account listings.
type ListFilter struct {
	Role    entity.Role
	Keyword string
	Limit   int
	Offset  int
}

// GetByID fetches an account by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Account, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.GetByID", trace.WithAttributes(attribute.Int64("account.id", id)))
	defer span.End()

	account := new(entity.Account)
	return r.scanOne(ctx, span, account, r.reader.NewSelect().Model(account).Where("a.id = ?", id))
}

// GetByIDs fetches the accounts with the given ids, keyed by id. Missing ids are absent.
func (r *Repository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*entity.Account, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.GetByIDs", trace.WithAttributes(attribute.Int("account.ids", len(ids))))
	defer span.End()

	out := make(map[int64]*entity.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var accounts []entity.Account
	if err := r.reader.NewSelect().Model(&accounts).Where("a.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	for i := range accounts {
		out[accounts[i].ID] = &accounts[i]
	}
	return out, nil
}

// GetByLogin fetches an account whose username or email equals login.
func (r *Repository) GetByLogin(ctx context.Context, login string) (*entity.Account, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.GetByLogin")
	defer span.End()

	account := new(entity.Account)
	q := r.reader.NewSelect().
		Model(account).
		Where("a.username = ?", login).
		WhereOr("a.email = ?", strings.ToLower(login))
	return r.scanOne(ctx, span, account, q)
}

// UsernameTaken reports whether another account already uses username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	q := r.reader.NewSelect().Model((*entity.Account)(nil)).Where("a.username = ?", username)
	if exceptID != 0 {
		q = q.Where("a.id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

// EmailTaken reports whether another account already uses email.
func (r *Repository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	q := r.reader.NewSelect().Model((*entity.Account)(nil)).Where("a.email = ?", email)
	if exceptID != 0 {
		q = q.Where("a.id <> ?", exceptID)
	}
	return q.Exists(ctx)
}

// Create persists a new account.
func (r *Repository) Create(ctx context.Context, account *entity.Account) error {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.Create", trace.WithAttributes(attribute.String("account.username", account.Username)))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(account).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update stores the named columns of account. updated_at is always written.
func (r *Repository) Update(ctx context.Context, account *entity.Account, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.Update", trace.WithAttributes(attribute.Int64("account.id", account.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(account).
		Column(append(columns, "updated_at")...).
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

// Delete removes an account.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.Delete", trace.WithAttributes(attribute.Int64("account.id", id)))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.Account)(nil)).Where("id = ?", id).Exec(ctx)
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

// List returns a page of accounts, newest first, with the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entity.Account, int, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.List", trace.WithAttributes(attribute.String("account.role", string(filter.Role))))
	defer span.End()

	var accounts []entity.Account
	q := r.reader.NewSelect().Model(&accounts)
	if filter.Role != "" {
		q = q.Where("a.role = ?", filter.Role)
	}
	if kw := strings.ToLower(strings.TrimSpace(filter.Keyword)); kw != "" {
		pattern := "%" + kw + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(a.username) LIKE ?", pattern).
				WhereOr("LOWER(a.email) LIKE ?", pattern).
				WhereOr("a.phone LIKE ?", pattern)
		})
	}
	q = q.Order("a.created_at DESC", "a.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return accounts, total, nil
}

// CountAdmins returns the number of active admin accounts.
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	return r.reader.NewSelect().
		Model((*entity.Account)(nil)).
		Where("a.role = ?", entity.RoleAdmin).
		Where("a.is_active = ?", true).
		Count(ctx)
}

// Statistics counts accounts by role, by registration time and by order activity.
type Statistics struct {
	Total       int
	Admins      int
	Users       int
	NewToday    int
	NewThisWeek int
	WithOrders  int
}

// Statistics counts accounts. Registrations at or after today count as new today, those at
// or after weekStart as new this week.
func (r *Repository) Statistics(ctx context.Context, today, weekStart time.Time) (Statistics, error) {
	ctx, span := repoTracer.Start(ctx, "AccountRepository.Statistics")
	defer span.End()

	var stats Statistics
	counts := []struct {
		dst   *int
		apply func(q *bun.SelectQuery) *bun.SelectQuery
	}{
		{&stats.Total, func(q *bun.SelectQuery) *bun.SelectQuery { return q }},
		{&stats.Admins, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("a.role = ?", entity.RoleAdmin) }},
		{&stats.Users, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("a.role = ?", entity.RoleUser) }},
		{&stats.NewToday, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("a.created_at >= ?", today.UTC()) }},
		{&stats.NewThisWeek, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("a.created_at >= ?", weekStart.UTC()) }},
		{&stats.WithOrders, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("EXISTS (SELECT 1 FROM orders AS o WHERE o.account_id = a.id)")
		}},
	}
	for _, c := range counts {
		n, err := c.apply(r.reader.NewSelect().Model((*entity.Account)(nil))).Count(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "count failed")
			return Statistics{}, err
		}
		*c.dst = n
	}
	return stats, nil
}

func (r *Repository) scanOne(ctx context.Context, span trace.Span, account *entity.Account, q *bun.SelectQuery) (*entity.Account, error) {
	err := q.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return account, nil
}
