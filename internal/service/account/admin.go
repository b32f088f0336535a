package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
	repo "github.com/Additional-Code/brewline/internal/repository/account"
	"github.com/Additional-Code/brewline/internal/service/paging"
	"github.com/Additional-Code/brewline/internal/validation"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// ListFilter narrows the admin account listing.
type ListFilter struct {
	Role    string
	Keyword string
	Page    paging.Request
}

// AdminPatch names the fields an admin may change on any account; nil fields are kept.
type AdminPatch struct {
	Username *string
	Email    *string
	Phone    *string
	Role     *string
}

// List returns a page of accounts, newest first. Admin only.
func (s *Service) List(ctx context.Context, caller auth.Caller, filter ListFilter) (paging.Result[entity.Account], error) {
	if err := requireAdmin(caller); err != nil {
		return paging.Result[entity.Account]{}, err
	}
	var role entity.Role
	if filter.Role != "" {
		role = entity.Role(filter.Role)
		if !role.Valid() {
			return paging.Result[entity.Account]{}, errorbank.Validation([]string{"role must be admin or user"})
		}
	}

	page := filter.Page.Normalize(defaultPageSize, maxPageSize)
	accounts, total, err := s.repo.List(ctx, repo.ListFilter{
		Role:    role,
		Keyword: filter.Keyword,
		Limit:   page.PerPage,
		Offset:  page.Offset(),
	})
	if err != nil {
		return paging.Result[entity.Account]{}, errorbank.Internal("failed to list accounts", errorbank.WithCause(err))
	}
	return paging.NewResult(accounts, total, page), nil
}

// Statistics counts accounts by role, recent registrations and accounts that have ordered.
// Today and the week are local calendar days; the week covers today and the seven days
// before it. Admin only.
func (s *Service) Statistics(ctx context.Context, caller auth.Caller) (repo.Statistics, error) {
	if err := requireAdmin(caller); err != nil {
		return repo.Statistics{}, err
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.Statistics")
	defer span.End()

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats, err := s.repo.Statistics(ctx, today, today.AddDate(0, 0, -7))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return repo.Statistics{}, errorbank.Internal("failed to count accounts", errorbank.WithCause(err))
	}
	return stats, nil
}

// Get returns any account with its order summary. Admin only.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id int64) (*Profile, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.Get", accountAttr(id))
	defer span.End()

	account, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, account)
}

// Update applies patch to any account. Admin only. The last active admin cannot be demoted.
func (s *Service) Update(ctx context.Context, caller auth.Caller, id int64, patch AdminPatch) (*entity.Account, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.Update", accountAttr(id))
	defer span.End()

	account, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	var role *entity.Role
	if patch.Role != nil {
		r := entity.Role(strings.TrimSpace(*patch.Role))
		role = &r
		if account.IsAdmin() && r == entity.RoleUser {
			if err := s.ensureAnotherAdmin(ctx, account); err != nil {
				return nil, err
			}
		}
	}
	updated, err := s.applyPatch(ctx, account, patch.Username, patch.Email, patch.Phone, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account updated by admin", zap.Int64("id", id), zap.Int64("admin_id", caller.AccountID))
	return updated, nil
}

// Delete removes an account that owns no orders. Admin only.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, id int64) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.Delete", accountAttr(id))
	defer span.End()

	if id == caller.AccountID {
		return errorbank.Conflict("you cannot delete your own account")
	}
	account, err := s.load(ctx, span, id)
	if err != nil {
		return err
	}
	owns, err := s.orders.ExistsForAccount(ctx, id)
	if err != nil {
		return errorbank.Internal("failed to check orders", errorbank.WithCause(err))
	}
	if owns {
		return errorbank.Conflict("account has orders and cannot be deleted")
	}
	if account.IsAdmin() {
		if err := s.ensureAnotherAdmin(ctx, account); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapWriteError(err)
	}
	s.logger.Info("account deleted", zap.Int64("id", id), zap.Int64("admin_id", caller.AccountID))
	return nil
}

// ResetPassword sets a new password on any account. Admin only.
func (s *Service) ResetPassword(ctx context.Context, caller auth.Caller, id int64, password string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.ResetPassword", accountAttr(id))
	defer span.End()

	v := validation.New()
	validatePassword(v, "new_password", password)
	if err := v.Err(); err != nil {
		return err
	}
	account, err := s.load(ctx, span, id)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, account, password)
}

// ToggleActive enables or disables an account. Disabled accounts resolve as anonymous.
// Admin only.
func (s *Service) ToggleActive(ctx context.Context, caller auth.Caller, id int64) (*entity.Account, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.ToggleActive", accountAttr(id))
	defer span.End()

	if id == caller.AccountID {
		return nil, errorbank.Conflict("you cannot disable your own account")
	}
	account, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if account.IsActive && account.IsAdmin() {
		if err := s.ensureAnotherAdmin(ctx, account); err != nil {
			return nil, err
		}
	}

	account.IsActive = !account.IsActive
	account.UpdatedAt = s.now().UTC()
	if err := s.store(ctx, account, "is_active"); err != nil {
		return nil, err
	}
	s.logger.Info("account status changed", zap.Int64("id", id), zap.Bool("active", account.IsActive))
	return account, nil
}

// ensureAnotherAdmin refuses to remove admin rights from the last active admin.
func (s *Service) ensureAnotherAdmin(ctx context.Context, account *entity.Account) error {
	if !account.IsActive {
		return nil
	}
	admins, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return errorbank.Internal("failed to count admins", errorbank.WithCause(err))
	}
	if admins <= 1 {
		return errorbank.Conflict("at least one active admin must remain")
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("account not found")
	case database.IsUniqueViolation(err):
		return errorbank.Conflict("username or email already registered", errorbank.WithCause(err))
	default:
		return errorbank.Internal("failed to update account", errorbank.WithCause(err))
	}
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
