package order

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/Additional-Code/brewline/internal/auth"
	repo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/internal/service/paging"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// SearchFilter is a keyword search over orders.
type SearchFilter struct {
	Query string
	Page  paging.Request
}

// Search matches the keyword against order numbers and owner usernames and emails,
// returning each order with its owner. Admin only.
func (s *Service) Search(ctx context.Context, caller auth.Caller, filter SearchFilter) (paging.Result[Detail], error) {
	if err := requireAdmin(caller); err != nil {
		return paging.Result[Detail]{}, err
	}
	query := strings.TrimSpace(filter.Query)
	if query == "" {
		return paging.Result[Detail]{}, errorbank.Validation([]string{"search keyword is required"})
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Search")
	defer span.End()

	page := filter.Page.Normalize(s.orders.DefaultPageSize, s.orders.MaxPageSize)
	orders, total, err := s.repo.Search(ctx, repo.SearchFilter{
		Query:  query,
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return paging.Result[Detail]{}, errorbank.Internal("failed to search orders", errorbank.WithCause(err))
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.AccountID)
	}
	owners, err := s.accounts.GetByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "owner lookup failed")
		return paging.Result[Detail]{}, errorbank.Internal("failed to load order owners", errorbank.WithCause(err))
	}

	details := make([]Detail, 0, len(orders))
	for i := range orders {
		details = append(details, Detail{Order: &orders[i], Owner: owners[orders[i].AccountID]})
	}
	return paging.NewResult(details, total, page), nil
}
