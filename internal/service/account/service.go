package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
	repo "github.com/Additional-Code/brewline/internal/repository/account"
	orderrepo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/internal/validation"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

const (
	minUsernameLen    = 3
	maxUsernameLen    = 50
	minPasswordLen    = 6
	defaultPageSize   = 20
	maxPageSize       = 100
	invalidCredential = "invalid username or password"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/brewline/service/account")

// Service manages accounts and their sessions.
type Service struct {
	repo        *repo.Repository
	orders      *orderrepo.Repository
	hasher      *auth.Hasher
	tokens      *auth.Tokens
	resolver    *auth.Resolver
	revocations *auth.Revocations
	logger      *zap.Logger
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository  *repo.Repository
	Orders      *orderrepo.Repository
	Hasher      *auth.Hasher
	Tokens      *auth.Tokens
	Resolver    *auth.Resolver
	Revocations *auth.Revocations
	Logger      *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        p.Repository,
		orders:      p.Orders,
		hasher:      p.Hasher,
		tokens:      p.Tokens,
		resolver:    p.Resolver,
		revocations: p.Revocations,
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterRequest is the input for creating an account.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// Session is an authenticated account with a fresh token pair.
type Session struct {
	Account *entity.Account
	Tokens  auth.TokenPair
}

// Register creates a regular user account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.Register")
	defer span.End()

	account, err := s.create(ctx, req, entity.RoleUser)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register failed")
		return nil, err
	}
	return s.session(account)
}

// CreateAdmin creates an admin account. Used for bootstrapping from the CLI.
func (s *Service) CreateAdmin(ctx context.Context, req RegisterRequest) (*entity.Account, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.CreateAdmin")
	defer span.End()

	account, err := s.create(ctx, req, entity.RoleAdmin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create admin failed")
		return nil, err
	}
	return account, nil
}

// Login authenticates by username or email.
func (s *Service) Login(ctx context.Context, login, password string) (*Session, error) {
	ctx, span := serviceTracer.Start(ctx, "AccountService.Login")
	defer span.End()

	login = strings.TrimSpace(login)
	v := validation.New()
	v.Required("login", login)
	v.Required("password", password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	account, err := s.repo.GetByLogin(ctx, login)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errorbank.Unauthorized(invalidCredential)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, errorbank.Internal("failed to load account", errorbank.WithCause(err))
	}
	if !s.hasher.Verify(account.PasswordHash, password) {
		return nil, errorbank.Unauthorized(invalidCredential)
	}
	if !account.IsActive {
		return nil, errorbank.Unauthorized("account is disabled")
	}

	s.logger.Info("account signed in", zap.Int64("id", account.ID))
	return s.session(account)
}

// Refresh exchanges a refresh token for a new access token. The refresh token itself is
// returned unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	account, err := s.resolver.ResolveRefresh(ctx, refreshToken)
	if err != nil {
		return nil, errorbank.Unauthorized("invalid refresh token", errorbank.WithCause(err))
	}
	access, _, err := s.tokens.Issue(account.ID, auth.TokenTypeAccess)
	if err != nil {
		return nil, errorbank.Internal("failed to issue token", errorbank.WithCause(err))
	}
	pair := s.tokens.Describe(access, refreshToken)
	return &pair, nil
}

// Logout revokes the presented access token until it expires.
func (s *Service) Logout(ctx context.Context, caller auth.Caller, claims *auth.Claims) error {
	if !caller.IsAuthenticated() || claims == nil {
		return errorbank.Unauthorized("authentication required")
	}
	if err := s.revocations.Revoke(ctx, claims); err != nil {
		return errorbank.Internal("failed to revoke token", errorbank.WithCause(err))
	}
	s.logger.Info("account signed out", zap.Int64("id", caller.AccountID))
	return nil
}

func (s *Service) create(ctx context.Context, req RegisterRequest, role entity.Role) (*entity.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	v := validation.New()
	if v.Required("username", req.Username) {
		v.LenBetween("username", req.Username, minUsernameLen, maxUsernameLen)
	}
	v.Email("email", req.Email)
	validatePassword(v, "password", req.Password)
	v.Phone("phone", req.Phone)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.Username, req.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}
	now := s.now().UTC()
	account := &entity.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Phone:        req.Phone,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errorbank.Conflict("username or email already registered", errorbank.WithCause(err))
		}
		return nil, errorbank.Internal("failed to create account", errorbank.WithCause(err))
	}
	s.logger.Info("account created", zap.Int64("id", account.ID), zap.String("role", string(role)))
	return account, nil
}

// ensureUnique rejects a username or email already held by an account other than exceptID.
func (s *Service) ensureUnique(ctx context.Context, username, email string, exceptID int64) error {
	var messages []string
	if username != "" {
		taken, err := s.repo.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return errorbank.Internal("failed to check username", errorbank.WithCause(err))
		}
		if taken {
			messages = append(messages, "username already exists")
		}
	}
	if email != "" {
		taken, err := s.repo.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return errorbank.Internal("failed to check email", errorbank.WithCause(err))
		}
		if taken {
			messages = append(messages, "email already exists")
		}
	}
	if len(messages) > 0 {
		return errorbank.Conflict(messages[0], errorbank.WithMessages(messages...))
	}
	return nil
}

func (s *Service) session(account *entity.Account) (*Session, error) {
	pair, err := s.tokens.Pair(account.ID)
	if err != nil {
		return nil, errorbank.Internal("failed to issue tokens", errorbank.WithCause(err))
	}
	return &Session{Account: account, Tokens: pair}, nil
}

func (s *Service) load(ctx context.Context, span trace.Span, id int64) (*entity.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		span.SetStatus(codes.Error, "not found")
		return nil, errorbank.NotFound("account not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, errorbank.Internal("failed to load account", errorbank.WithCause(err))
	}
	return account, nil
}

func validatePassword(v *validation.Collector, field, password string) {
	if !v.Check(len(password) >= minPasswordLen, "%s must be at least %d characters", field, minPasswordLen) {
		return
	}
	v.Check(len(password) <= auth.MaxPasswordBytes, "%s must be at most %d bytes", field, auth.MaxPasswordBytes)
}

func accountAttr(id int64) trace.SpanStartOption {
	return trace.WithAttributes(attribute.Int64("account.id", id))
}
