package auth

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/entity"
)

var authTracer = otel.Tracer("github.com/Additional-Code/brewline/auth")

const revokedKeyPrefix = "auth:revoked:"

// AccountFinder loads accounts by id.
type AccountFinder interface {
	GetByID(ctx context.Context, id int64) (*entity.Account, error)
}

// Revocations records token ids that must no longer be accepted. Entries are persisted in
// the ledger; the cache store only fronts lookups.
type Revocations struct {
	list *cache.Denylist
}

// NewRevocations builds a revocation list over ledger with store as a read-through cache.
func NewRevocations(store cache.Store, ledger cache.Ledger) *Revocations {
	return &Revocations{list: cache.NewDenylist(store, ledger, revokedKeyPrefix)}
}

// Revoke blocks the token id until it would have expired anyway.
func (r *Revocations) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	return r.list.Add(ctx, claims.ID, claims.ExpiresAt.Time)
}

// IsRevoked reports whether the token id was revoked. Lookup failures are returned so the
// caller can fail closed.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.list.Contains(ctx, jti)
}

// Resolver turns a bearer token into a Caller.
type Resolver struct {
	tokens      *Tokens
	revocations *Revocations
	accounts    AccountFinder
	logger      *zap.Logger
}

// NewResolver wires a Resolver.
func NewResolver(tokens *Tokens, revocations *Revocations, accounts AccountFinder, logger *zap.Logger) *Resolver {
	return &Resolver{tokens: tokens, revocations: revocations, accounts: accounts, logger: logger}
}

// Resolve returns the caller for an access token along with its claims. Any failure
// resolves to Anonymous with nil claims.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Caller, *Claims) {
	if raw == "" {
		return Anonymous(), nil
	}
	ctx, span := authTracer.Start(ctx, "auth.Resolve")
	defer span.End()

	claims, err := r.tokens.Parse(raw, TokenTypeAccess)
	if err != nil {
		return Anonymous(), nil
	}
	account, err := r.activeAccount(ctx, claims)
	if err != nil {
		return Anonymous(), nil
	}
	return NewCaller(account), claims
}

// ResolveRefresh validates a refresh token and returns its active account.
func (r *Resolver) ResolveRefresh(ctx context.Context, raw string) (*entity.Account, error) {
	claims, err := r.tokens.Parse(raw, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return r.activeAccount(ctx, claims)
}

func (r *Resolver) activeAccount(ctx context.Context, claims *Claims) (*entity.Account, error) {
	revoked, err := r.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("revocation lookup failed", zap.Error(err))
		}
		return nil, ErrInvalidToken
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	id, err := claims.AccountID()
	if err != nil {
		return nil, err
	}
	account, err := r.accounts.GetByID(ctx, id)
	if err != nil || account == nil || !account.IsActive {
		return nil, ErrInvalidToken
	}
	return account, nil
}
