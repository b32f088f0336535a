package account

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/entity"
	"github.com/Additional-Code/brewline/internal/validation"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// Profile is an account with its order history summary.
type Profile struct {
	Account    *entity.Account
	OrderCount int64
	TotalSpent decimal.Decimal
}

// ProfilePatch names the fields an account may change on itself; nil fields are kept.
type ProfilePatch struct {
	Username *string
	Email    *string
	Phone    *string
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, caller auth.Caller) (*Profile, error) {
	if !caller.IsAuthenticated() {
		return nil, errorbank.Unauthorized("authentication required")
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.Profile", accountAttr(caller.AccountID))
	defer span.End()

	account, err := s.load(ctx, span, caller.AccountID)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, account)
}

// UpdateProfile applies patch to the caller's own account.
func (s *Service) UpdateProfile(ctx context.Context, caller auth.Caller, patch ProfilePatch) (*entity.Account, error) {
	if !caller.IsAuthenticated() {
		return nil, errorbank.Unauthorized("authentication required")
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.UpdateProfile", accountAttr(caller.AccountID))
	defer span.End()

	account, err := s.load(ctx, span, caller.AccountID)
	if err != nil {
		return nil, err
	}
	return s.applyPatch(ctx, account, patch.Username, patch.Email, patch.Phone, nil)
}

// ChangePassword replaces the caller's password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, caller auth.Caller, current, next string) error {
	if !caller.IsAuthenticated() {
		return errorbank.Unauthorized("authentication required")
	}
	ctx, span := serviceTracer.Start(ctx, "AccountService.ChangePassword", accountAttr(caller.AccountID))
	defer span.End()

	v := validation.New()
	v.Required("old_password", current)
	validatePassword(v, "new_password", next)
	if err := v.Err(); err != nil {
		return err
	}

	account, err := s.load(ctx, span, caller.AccountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(account.PasswordHash, current) {
		return errorbank.BadRequest("old password is incorrect")
	}
	return s.setPassword(ctx, account, next)
}

func (s *Service) profile(ctx context.Context, account *entity.Account) (*Profile, error) {
	summary, err := s.orders.AccountSummary(ctx, account.ID)
	if err != nil {
		return nil, errorbank.Internal("failed to summarise orders", errorbank.WithCause(err))
	}
	return &Profile{Account: account, OrderCount: summary.OrderCount, TotalSpent: summary.TotalSpent}, nil
}

// applyPatch validates and stores the provided identity fields and, for admins, the role.
func (s *Service) applyPatch(ctx context.Context, account *entity.Account, username, email, phone *string, role *entity.Role) (*entity.Account, error) {
	v := validation.New()
	var columns []string
	var newUsername, newEmail string

	if username != nil {
		value := strings.TrimSpace(*username)
		if v.Required("username", value) && v.LenBetween("username", value, minUsernameLen, maxUsernameLen) && value != account.Username {
			newUsername = value
		}
		account.Username = value
		columns = append(columns, "username")
	}
	if email != nil {
		value := strings.ToLower(strings.TrimSpace(*email))
		if v.Email("email", value) && value != account.Email {
			newEmail = value
		}
		account.Email = value
		columns = append(columns, "email")
	}
	if phone != nil {
		value := strings.TrimSpace(*phone)
		v.Phone("phone", value)
		account.Phone = value
		columns = append(columns, "phone")
	}
	if role != nil {
		v.Check(role.Valid(), "role must be admin or user")
		account.Role = *role
		columns = append(columns, "role")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return account, nil
	}
	if err := s.ensureUnique(ctx, newUsername, newEmail, account.ID); err != nil {
		return nil, err
	}

	account.UpdatedAt = s.now().UTC()
	if err := s.store(ctx, account, columns...); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) setPassword(ctx context.Context, account *entity.Account, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}
	account.PasswordHash = hash
	account.UpdatedAt = s.now().UTC()
	if err := s.store(ctx, account, "password_hash"); err != nil {
		return err
	}
	s.logger.Info("account password changed", zap.Int64("id", account.ID))
	return nil
}

func (s *Service) store(ctx context.Context, account *entity.Account, columns ...string) error {
	ctx, span := serviceTracer.Start(ctx, "AccountService.store", accountAttr(account.ID))
	defer span.End()

	if err := s.repo.Update(ctx, account, columns...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return mapWriteError(err)
	}
	return nil
}
