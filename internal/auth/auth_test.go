package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/entity"
)

type stubAccounts map[int64]*entity.Account

func (s stubAccounts) GetByID(_ context.Context, id int64) (*entity.Account, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, errors.New("not found")
}

type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: make(map[string]time.Time)}
}

func (l *memoryLedger) Add(_ context.Context, key string, until, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[key] = until
	return nil
}

func (l *memoryLedger) Contains(_ context.Context, key string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.entries[key]
	return ok && !until.Before(now), nil
}

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	return NewTokens(config.Config{Auth: config.Auth{
		JWTSecret:       "0123456789abcdef0123",
		Issuer:          "brewline-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}})
}

func newResolver(t *testing.T, accounts stubAccounts) (*Resolver, *Tokens, *Revocations) {
	t.Helper()
	store, err := cache.NewMemoryStore(100, time.Minute)
	require.NoError(t, err)
	tokens := testTokens(t)
	revocations := NewRevocations(store, newMemoryLedger())
	return NewResolver(tokens, revocations, accounts, zap.NewNop()), tokens, revocations
}

func TestCallerPredicates(t *testing.T) {
	anon := Anonymous()
	assert.False(t, anon.IsAuthenticated())
	assert.False(t, anon.IsAdmin())
	assert.False(t, anon.CanAccess(0))

	user := Caller{AccountID: 7, Role: entity.RoleUser}
	assert.True(t, user.IsAuthenticated())
	assert.False(t, user.IsAdmin())
	assert.True(t, user.CanAccess(7))
	assert.False(t, user.CanAccess(8))

	admin := Caller{AccountID: 1, Role: entity.RoleAdmin}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanAccess(8))
}

func TestHasher(t *testing.T) {
	h := NewHasherWithCost(4)
	hash, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", hash)
	assert.True(t, h.Verify(hash, "secret1"))
	assert.False(t, h.Verify(hash, "secret2"))
	assert.False(t, h.Verify("not-a-hash", "secret1"))
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := testTokens(t)

	pair, err := tokens.Pair(42)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := tokens.Parse(pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	id, err := claims.AccountID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NotEmpty(t, claims.ID)

	_, err = tokens.Parse(pair.RefreshToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tokens.Parse(pair.AccessToken, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensRejectTamperingAndExpiry(t *testing.T) {
	tokens := testTokens(t)
	raw, _, err := tokens.Issue(42, TokenTypeAccess)
	require.NoError(t, err)

	_, err = tokens.Parse(raw+"x", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := testTokens(t)
	other.secret = []byte("another-secret-of-length")
	_, err = other.Parse(raw, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tokens.Parse(raw, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolverFailsClosed(t *testing.T) {
	accounts := stubAccounts{
		1: {ID: 1, Role: entity.RoleAdmin, IsActive: true},
		2: {ID: 2, Role: entity.RoleUser, IsActive: false},
	}
	resolver, tokens, _ := newResolver(t, accounts)
	ctx := context.Background()

	caller, claims := resolver.Resolve(ctx, "")
	assert.Equal(t, Anonymous(), caller)
	assert.Nil(t, claims)

	caller, _ = resolver.Resolve(ctx, "garbage")
	assert.Equal(t, Anonymous(), caller)

	raw, _, err := tokens.Issue(1, TokenTypeAccess)
	require.NoError(t, err)
	caller, claims = resolver.Resolve(ctx, raw)
	assert.Equal(t, Caller{AccountID: 1, Role: entity.RoleAdmin}, caller)
	require.NotNil(t, claims)

	inactive, _, err := tokens.Issue(2, TokenTypeAccess)
	require.NoError(t, err)
	caller, _ = resolver.Resolve(ctx, inactive)
	assert.Equal(t, Anonymous(), caller)

	unknown, _, err := tokens.Issue(99, TokenTypeAccess)
	require.NoError(t, err)
	caller, _ = resolver.Resolve(ctx, unknown)
	assert.Equal(t, Anonymous(), caller)
}

func TestResolverReadsRoleEachTime(t *testing.T) {
	account := &entity.Account{ID: 5, Role: entity.RoleAdmin, IsActive: true}
	resolver, tokens, _ := newResolver(t, stubAccounts{5: account})
	ctx := context.Background()

	raw, _, err := tokens.Issue(5, TokenTypeAccess)
	require.NoError(t, err)

	caller, _ := resolver.Resolve(ctx, raw)
	assert.True(t, caller.IsAdmin())

	account.Role = entity.RoleUser
	caller, _ = resolver.Resolve(ctx, raw)
	assert.True(t, caller.IsAuthenticated())
	assert.False(t, caller.IsAdmin())
}

func TestRevokedTokenResolvesAnonymous(t *testing.T) {
	resolver, tokens, revocations := newResolver(t, stubAccounts{3: {ID: 3, Role: entity.RoleUser, IsActive: true}})
	ctx := context.Background()

	raw, _, err := tokens.Issue(3, TokenTypeAccess)
	require.NoError(t, err)
	caller, claims := resolver.Resolve(ctx, raw)
	require.True(t, caller.IsAuthenticated())

	require.NoError(t, revocations.Revoke(ctx, claims))
	caller, _ = resolver.Resolve(ctx, raw)
	assert.False(t, caller.IsAuthenticated())

	revoked, err := revocations.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevocationSurvivesWithoutCache(t *testing.T) {
	ctx := context.Background()
	tokens := testTokens(t)
	revocations := NewRevocations(cache.Noop(), newMemoryLedger())
	resolver := NewResolver(tokens, revocations, stubAccounts{5: {ID: 5, Role: entity.RoleUser, IsActive: true}}, zap.NewNop())

	raw, _, err := tokens.Issue(5, TokenTypeAccess)
	require.NoError(t, err)
	caller, claims := resolver.Resolve(ctx, raw)
	require.True(t, caller.IsAuthenticated())

	require.NoError(t, revocations.Revoke(ctx, claims))
	caller, _ = resolver.Resolve(ctx, raw)
	assert.False(t, caller.IsAuthenticated())
}

type failingLedger struct{}

func (failingLedger) Add(context.Context, string, time.Time, time.Time) error {
	return errors.New("ledger down")
}

func (failingLedger) Contains(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("ledger down")
}

func TestRevocationLedgerFailures(t *testing.T) {
	ctx := context.Background()
	tokens := testTokens(t)
	revocations := NewRevocations(cache.Noop(), failingLedger{})
	resolver := NewResolver(tokens, revocations, stubAccounts{5: {ID: 5, Role: entity.RoleUser, IsActive: true}}, zap.NewNop())

	raw, _, err := tokens.Issue(5, TokenTypeAccess)
	require.NoError(t, err)
	claims, err := tokens.Parse(raw, TokenTypeAccess)
	require.NoError(t, err)

	assert.Error(t, revocations.Revoke(ctx, claims), "logout must not report success")
	caller, _ := resolver.Resolve(ctx, raw)
	assert.False(t, caller.IsAuthenticated(), "unknown revocation state fails closed")
}

func TestResolveRefresh(t *testing.T) {
	resolver, tokens, _ := newResolver(t, stubAccounts{3: {ID: 3, Role: entity.RoleUser, IsActive: true}})
	ctx := context.Background()

	pair, err := tokens.Pair(3)
	require.NoError(t, err)

	account, err := resolver.ResolveRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), account.ID)

	_, err = resolver.ResolveRefresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
