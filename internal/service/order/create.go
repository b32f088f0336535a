package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/entity"
	menurepo "github.com/Additional-Code/brewline/internal/repository/menu"
	repo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/internal/validation"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

const (
	maxCustomerNameLen = 100
	maxNotesLen        = 500
)

// Line problem codes reported under the "items" validation detail.
const (
	CodeCartEmpty       = "cart_empty"
	CodeMissingMenuID   = "missing_menu_id"
	CodeInvalidQuantity = "invalid_quantity"
	CodeItemNotFound    = "item_not_found"
	CodeItemUnavailable = "item_unavailable"
)

// LineRequest is one requested (menu item, quantity) pair. A quantity that was not a
// whole number on the wire arrives as zero.
type LineRequest struct {
	MenuID   int64
	Quantity int
}

// CreateRequest is the input for placing an order.
type CreateRequest struct {
	Items         []LineRequest
	CustomerName  string
	CustomerPhone string
	Notes         string
}

// LineIssue pinpoints a rejected request line.
type LineIssue struct {
	Index  int    `json:"index"`
	MenuID int64  `json:"menu_id"`
	Code   string `json:"code"`
}

// FormatOrderNumber renders <prefix><YYYYMMDD><NNNN>.
func FormatOrderNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.Format("20060102"), seq)
}

// Create validates the request, prices every line from the catalog and persists the order
// and its lines atomically under a freshly allocated daily number.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (*entity.Order, error) {
	if !caller.IsAuthenticated() {
		return nil, errorbank.Unauthorized("authentication required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("account.id", caller.AccountID),
		attribute.Int("order.lines", len(req.Items)),
	))
	defer span.End()

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var created *entity.Order
	err := s.withRetry(ctx, "create", func(ctx context.Context, orders *repo.Repository, menu *menurepo.Repository) error {
		lines, err := priceLines(ctx, menu, req.Items)
		if err != nil {
			return err
		}

		now := s.now()
		seq, err := orders.NextSequence(ctx, now.Format("20060102"))
		if err != nil {
			return err
		}

		order := &entity.Order{
			AccountID:     caller.AccountID,
			Number:        FormatOrderNumber(s.orders.NumberPrefix, now, seq),
			Status:        entity.OrderStatusPending,
			TotalPrice:    entity.SumSubtotals(lines),
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			Notes:         req.Notes,
			CreatedAt:     now.UTC(),
			UpdatedAt:     now.UTC(),
			Lines:         lines,
		}
		if err := orders.Create(ctx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	s.metrics.created(ctx)
	s.afterWrite(ctx, created, newEvent(EventOrderCreated, created, ""))
	s.logger.Info("order created",
		zap.Int64("id", created.ID),
		zap.String("number", created.Number),
		zap.String("total", created.TotalPrice.StringFixed(2)),
	)
	return created, nil
}

func validateCreate(req CreateRequest) error {
	v := validation.New()
	var issues []LineIssue

	if len(req.Items) == 0 {
		v.Add("cart is empty")
		v.Detail("code", CodeCartEmpty)
	}
	for i, item := range req.Items {
		if item.MenuID <= 0 {
			v.Add("items[%d]: menu_id is required", i)
			issues = append(issues, LineIssue{Index: i, MenuID: item.MenuID, Code: CodeMissingMenuID})
		}
		if item.Quantity <= 0 {
			v.Add("items[%d]: quantity must be a positive integer", i)
			issues = append(issues, LineIssue{Index: i, MenuID: item.MenuID, Code: CodeInvalidQuantity})
		}
	}
	v.MaxLen("customer_name", req.CustomerName, maxCustomerNameLen)
	v.Phone("customer_phone", req.CustomerPhone)
	v.MaxLen("notes", req.Notes, maxNotesLen)

	if len(issues) > 0 {
		v.Detail("items", issues)
	}
	return v.Err()
}

// priceLines resolves every requested item and snapshots its current price.
func priceLines(ctx context.Context, menu *menurepo.Repository, items []LineRequest) ([]entity.OrderLine, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MenuID)
	}
	catalog, err := menu.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	v := validation.New()
	var issues []LineIssue
	lines := make([]entity.OrderLine, 0, len(items))
	for i, item := range items {
		menuItem, ok := catalog[item.MenuID]
		switch {
		case !ok:
			v.Add("items[%d]: menu item %d not found", i, item.MenuID)
			issues = append(issues, LineIssue{Index: i, MenuID: item.MenuID, Code: CodeItemNotFound})
		case !menuItem.IsAvailable:
			v.Add("items[%d]: %s is currently unavailable", i, menuItem.Name)
			issues = append(issues, LineIssue{Index: i, MenuID: item.MenuID, Code: CodeItemUnavailable})
		default:
			lines = append(lines, entity.NewOrderLine(menuItem.ID, item.Quantity, menuItem.Price))
		}
	}
	if len(issues) > 0 {
		v.Detail("items", issues)
		return nil, v.Err()
	}
	return lines, nil
}
