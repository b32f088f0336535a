package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/brewline/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrLineNotFound is returned when an order line is missing.
var ErrLineNotFound = errors.New("order line not found")

// Repository encapsulates read/write access for orders and their lines.
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

// ListFilter narrows order listings. Zero values mean "any".
type ListFilter struct {
	AccountID int64
	Status    entity.OrderStatus
	Limit     int
	Offset    int
}

// SearchFilter matches orders by number or by the owner's username or email.
type SearchFilter struct {
	Query  string
	Limit  int
	Offset int
}

// ItemSales is the sold quantity of one menu item across non-cancelled orders.
type ItemSales struct {
	MenuID       int64 `bun:"menu_id"`
	QuantitySold int64 `bun:"quantity_sold"`
	OrderCount   int64 `bun:"order_count"`
}

type statusCount struct {
	Status entity.OrderStatus `bun:"status"`
	Count  int64              `bun:"count"`
}

// AccountSummary aggregates an account's order history.
type AccountSummary struct {
	OrderCount int64
	TotalSpent decimal.Decimal
}

const (
	sequenceUpsertSQL = `INSERT INTO order_sequences (day, last_value) VALUES (?, 1)
ON CONFLICT (day) DO UPDATE SET last_value = order_sequences.last_value + 1
RETURNING last_value`
	sequenceUpsertMySQL = `INSERT INTO order_sequences (day, last_value) VALUES (?, 1)
ON DUPLICATE KEY UPDATE last_value = last_value + 1`
)

// NextSequence atomically increments and returns the counter for day. It must run in the
// same transaction as the order insert so the counter row lock serialises same-day writers.
func (r *Repository) NextSequence(ctx context.Context, day string) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextSequence", trace.WithAttributes(attribute.String("order.day", day)))
	defer span.End()

	var value int
	var err error
	if r.writer.Dialect().Name() == dialect.MySQL {
		if _, err = r.writer.NewRaw(sequenceUpsertMySQL, day).Exec(ctx); err == nil {
			err = r.writer.NewRaw("SELECT last_value FROM order_sequences WHERE day = ?", day).Scan(ctx, &value)
		}
	} else {
		err = r.writer.NewRaw(sequenceUpsertSQL, day).Scan(ctx, &value)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sequence upsert failed")
		return 0, err
	}
	return value, nil
}

// Create persists an order and all of its lines. Callers run it inside a transaction.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.String("order.number", order.Number),
		attribute.Int("order.lines", len(order.Lines)),
	))
	defer span.End()

	if _, err := r.writer.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	if len(order.Lines) == 0 {
		return nil
	}
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		if order.Lines[i].CreatedAt.IsZero() {
			order.Lines[i].CreatedAt = order.CreatedAt
		}
	}
	if _, err := r.writer.NewInsert().Model(&order.Lines).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert lines failed")
		return err
	}
	return nil
}

// GetByID fetches an order with its lines using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	lines, err := r.Lines(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select lines failed")
		return nil, err
	}
	order.Lines = lines
	return order, nil
}

// GetForUpdate re-reads the order header from the writer, taking a row lock where the
// dialect supports one.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetForUpdate", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	q := r.writer.NewSelect().Model(order).Where("o.id = ?", id)
	if database.SupportsRowLocks(r.writer) {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// UpdateStatus moves the order from one status to another. It only matches a row still in
// from; a concurrent change yields database.ErrStaleWrite.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.from", from.String()),
		attribute.String("order.status.to", to.String()),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return expectOneRow(res)
}

// UpdateTotal stores a recomputed total.
func (r *Repository) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateTotal", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("total_price = ?", total).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if err := expectOneRow(res); err != nil {
		return ErrNotFound
	}
	return nil
}

// Lines returns the lines of one order in insertion order.
func (r *Repository) Lines(ctx context.Context, orderID int64) ([]entity.OrderLine, error) {
	var lines []entity.OrderLine
	err := r.reader.NewSelect().
		Model(&lines).
		Where("oi.order_id = ?", orderID).
		Order("oi.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// GetLine fetches a single order line from the writer.
func (r *Repository) GetLine(ctx context.Context, lineID int64) (*entity.OrderLine, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetLine", trace.WithAttributes(attribute.Int64("order.line.id", lineID)))
	defer span.End()

	line := new(entity.OrderLine)
	err := r.writer.NewSelect().Model(line).Where("oi.id = ?", lineID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return line, nil
}

// UpdateLine stores a line's quantity and subtotal.
func (r *Repository) UpdateLine(ctx context.Context, line *entity.OrderLine) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateLine", trace.WithAttributes(attribute.Int64("order.line.id", line.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model(line).
		Column("quantity", "subtotal").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if err := expectOneRow(res); err != nil {
		return ErrLineNotFound
	}
	return nil
}

// List returns a page of orders, newest first, with their lines and the unpaged count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(
		attribute.Int64("order.account_id", filter.AccountID),
		attribute.String("order.status", filter.Status.String()),
	))
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders)
	if filter.AccountID != 0 {
		q = q.Where("o.account_id = ?", filter.AccountID)
	}
	if filter.Status != "" {
		q = q.Where("o.status = ?", filter.Status)
	}
	q = q.Order("o.created_at DESC", "o.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	if err := r.attachLines(ctx, orders); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select lines failed")
		return nil, 0, err
	}
	return orders, total, nil
}

// Search returns a page of orders whose number, owner username or owner email contains
// the query, newest first, with their lines and the unpaged count.
func (r *Repository) Search(ctx context.Context, filter SearchFilter) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Search")
	defer span.End()

	pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Query)) + "%"
	var orders []entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Join("JOIN accounts AS a ON a.id = o.account_id").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(o.order_number) LIKE ?", pattern).
				WhereOr("LOWER(a.username) LIKE ?", pattern).
				WhereOr("LOWER(a.email) LIKE ?", pattern)
		}).
		Order("o.created_at DESC", "o.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	if err := r.attachLines(ctx, orders); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select lines failed")
		return nil, 0, err
	}
	return orders, total, nil
}

// Recent returns the newest orders across all accounts.
func (r *Repository) Recent(ctx context.Context, limit int) ([]entity.Order, error) {
	orders, _, err := r.List(ctx, ListFilter{Limit: limit})
	return orders, err
}

// CreatedBetween returns order headers created in [start, end).
func (r *Repository) CreatedBetween(ctx context.Context, start, end time.Time) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreatedBetween")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Column("o.id", "o.status", "o.total_price", "o.created_at").
		Where("o.created_at >= ?", start.UTC()).
		Where("o.created_at < ?", end.UTC()).
		Order("o.created_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// CountByStatus returns the number of orders in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entity.OrderStatus]int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	var rows []statusCount
	err := r.reader.NewSelect().
		TableExpr("orders AS o").
		ColumnExpr("o.status AS status").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("o.status").
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}

	counts := make(map[entity.OrderStatus]int64, len(entity.OrderStatuses))
	for _, status := range entity.OrderStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// PopularItems ranks menu items by quantity sold, ignoring cancelled orders.
func (r *Repository) PopularItems(ctx context.Context, limit int) ([]ItemSales, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.PopularItems", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var rows []ItemSales
	err := r.reader.NewSelect().
		TableExpr("order_items AS oi").
		Join("JOIN orders AS o ON o.id = oi.order_id").
		ColumnExpr("oi.menu_id AS menu_id").
		ColumnExpr("SUM(oi.quantity) AS quantity_sold").
		ColumnExpr("COUNT(DISTINCT oi.order_id) AS order_count").
		Where("o.status <> ?", entity.OrderStatusCancelled).
		GroupExpr("oi.menu_id").
		OrderExpr("quantity_sold DESC, oi.menu_id ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return rows, nil
}

// AccountSummary returns the order count and the amount spent on non-cancelled orders.
func (r *Repository) AccountSummary(ctx context.Context, accountID int64) (AccountSummary, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.AccountSummary", trace.WithAttributes(attribute.Int64("account.id", accountID)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Column("o.id", "o.status", "o.total_price").
		Where("o.account_id = ?", accountID).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return AccountSummary{}, err
	}

	summary := AccountSummary{OrderCount: int64(len(orders)), TotalSpent: decimal.Zero}
	for _, o := range orders {
		if o.Status != entity.OrderStatusCancelled {
			summary.TotalSpent = summary.TotalSpent.Add(o.TotalPrice)
		}
	}
	return summary, nil
}

// ExistsForAccount reports whether the account owns at least one order.
func (r *Repository) ExistsForAccount(ctx context.Context, accountID int64) (bool, error) {
	return r.reader.NewSelect().Model((*entity.Order)(nil)).Where("o.account_id = ?", accountID).Exists(ctx)
}

// ExistsForMenuItem reports whether any order line references the menu item.
func (r *Repository) ExistsForMenuItem(ctx context.Context, menuID int64) (bool, error) {
	return r.reader.NewSelect().Model((*entity.OrderLine)(nil)).Where("oi.menu_id = ?", menuID).Exists(ctx)
}

func (r *Repository) attachLines(ctx context.Context, orders []entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	var lines []entity.OrderLine
	err := r.reader.NewSelect().
		Model(&lines).
		Where("oi.order_id IN (?)", bun.In(ids)).
		Order("oi.order_id ASC", "oi.id ASC").
		Scan(ctx)
	if err != nil {
		return err
	}
	for _, line := range lines {
		i := index[line.OrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrStaleWrite
	}
	return nil
}
