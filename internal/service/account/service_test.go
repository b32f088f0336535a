package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/database/dbtest"
	"github.com/Additional-Code/brewline/internal/entity"
	repo "github.com/Additional-Code/brewline/internal/repository/account"
	orderrepo "github.com/Additional-Code/brewline/internal/repository/order"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

type fixture struct {
	svc      *Service
	conns    *database.Connections
	resolver *auth.Resolver
	tokens   *auth.Tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conns := dbtest.New(t)
	accounts := repo.NewRepository(conns)

	store, err := cache.NewMemoryStore(100, time.Minute)
	require.NoError(t, err)

	tokens := auth.NewTokens(config.Config{Auth: config.Auth{
		JWTSecret:       "test-secret-0123456789",
		Issuer:          "brewline-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}})
	revocations := auth.NewRevocations(store, repo.NewRevokedTokens(conns))
	resolver := auth.NewResolver(tokens, revocations, accounts, zap.NewNop())

	svc := NewService(Params{
		Repository:  accounts,
		Orders:      orderrepo.NewRepository(conns),
		Hasher:      auth.NewHasherWithCost(4),
		Tokens:      tokens,
		Resolver:    resolver,
		Revocations: revocations,
		Logger:      zap.NewNop(),
	})
	return &fixture{svc: svc, conns: conns, resolver: resolver, tokens: tokens}
}

func (f *fixture) register(t *testing.T, username string) *Session {
	t.Helper()
	session, err := f.svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@Example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	return session
}

func (f *fixture) admin(t *testing.T, username string) auth.Caller {
	t.Helper()
	account, err := f.svc.CreateAdmin(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	return auth.NewCaller(account)
}

func kindOf(err error) errorbank.Kind {
	return errorbank.From(err).Kind()
}

func strPtr(s string) *string {
	return &s
}

func TestRegisterCreatesUserAndSignsIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.register(t, "alice")
	assert.Equal(t, entity.RoleUser, session.Account.Role)
	assert.Equal(t, "alice@example.com", session.Account.Email)
	assert.True(t, session.Account.IsActive)
	assert.NotEqual(t, "secret1", session.Account.PasswordHash)

	caller, _ := f.resolver.Resolve(ctx, session.Tokens.AccessToken)
	assert.Equal(t, session.Account.ID, caller.AccountID)
	assert.False(t, caller.IsAdmin())
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	cases := map[string]struct {
		req  RegisterRequest
		kind errorbank.Kind
	}{
		"short username":    {RegisterRequest{Username: "al", Email: "a@example.com", Password: "secret1"}, errorbank.KindValidation},
		"bad email":         {RegisterRequest{Username: "bobby", Email: "nope", Password: "secret1"}, errorbank.KindValidation},
		"short password":    {RegisterRequest{Username: "bobby", Email: "b@example.com", Password: "12345"}, errorbank.KindValidation},
		"long password":     {RegisterRequest{Username: "bobby", Email: "b@example.com", Password: strings.Repeat("x", 73)}, errorbank.KindValidation},
		"bad phone":         {RegisterRequest{Username: "bobby", Email: "b@example.com", Password: "secret1", Phone: "555"}, errorbank.KindValidation},
		"taken username":    {RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret1"}, errorbank.KindConflict},
		"taken email mixed": {RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "secret1"}, errorbank.KindConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.req)
			assert.Equal(t, tc.kind, kindOf(err))
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	session, err := f.svc.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Tokens.AccessToken)

	session, err = f.svc.Login(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Account.Username)

	_, err = f.svc.Login(ctx, "alice", "wrong-password")
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))

	_, err = f.svc.Login(ctx, "nobody", "secret1")
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))

	_, err = f.svc.Login(ctx, "", "")
	assert.Equal(t, errorbank.KindValidation, kindOf(err))
}

func TestDisabledAccountCannotSignInOrResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "boss")
	session := f.register(t, "alice")

	_, err := f.svc.ToggleActive(ctx, admin, session.Account.ID)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "alice", "secret1")
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))

	caller, _ := f.resolver.Resolve(ctx, session.Tokens.AccessToken)
	assert.False(t, caller.IsAuthenticated())

	account, err := f.svc.ToggleActive(ctx, admin, session.Account.ID)
	require.NoError(t, err)
	assert.True(t, account.IsActive)
}

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.register(t, "alice")

	pair, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.Tokens.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, session.Tokens.AccessToken, pair.AccessToken)

	_, err = f.svc.Refresh(ctx, session.Tokens.AccessToken)
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))

	caller, claims := f.resolver.Resolve(ctx, pair.AccessToken)
	require.True(t, caller.IsAuthenticated())
	require.NoError(t, f.svc.Logout(ctx, caller, claims))

	caller, _ = f.resolver.Resolve(ctx, pair.AccessToken)
	assert.False(t, caller.IsAuthenticated())

	other, _ := f.resolver.Resolve(ctx, session.Tokens.AccessToken)
	assert.True(t, other.IsAuthenticated(), "only the presented token is revoked")
}

func TestProfileAndUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := auth.NewCaller(f.register(t, "alice").Account)
	f.register(t, "bob")

	profile, err := f.svc.Profile(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, profile.OrderCount)
	assert.True(t, profile.TotalSpent.IsZero())

	updated, err := f.svc.UpdateProfile(ctx, alice, ProfilePatch{Phone: strPtr("13812345678"), Email: strPtr("New@Example.com")})
	require.NoError(t, err)
	assert.Equal(t, "13812345678", updated.Phone)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "alice", updated.Username)

	_, err = f.svc.UpdateProfile(ctx, alice, ProfilePatch{Username: strPtr("bob")})
	assert.Equal(t, errorbank.KindConflict, kindOf(err))

	_, err = f.svc.UpdateProfile(ctx, alice, ProfilePatch{Username: strPtr("alice")})
	assert.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, alice, ProfilePatch{Phone: strPtr("123")})
	assert.Equal(t, errorbank.KindValidation, kindOf(err))

	_, err = f.svc.Profile(ctx, auth.Anonymous())
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := auth.NewCaller(f.register(t, "alice").Account)

	err := f.svc.ChangePassword(ctx, alice, "wrong", "newsecret")
	assert.Equal(t, errorbank.KindBadRequest, kindOf(err))

	err = f.svc.ChangePassword(ctx, alice, "secret1", "123")
	assert.Equal(t, errorbank.KindValidation, kindOf(err))

	require.NoError(t, f.svc.ChangePassword(ctx, alice, "secret1", "newsecret"))

	_, err = f.svc.Login(ctx, "alice", "secret1")
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))
	_, err = f.svc.Login(ctx, "alice", "newsecret")
	assert.NoError(t, err)
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := auth.NewCaller(f.register(t, "alice").Account)

	_, err := f.svc.List(ctx, alice, ListFilter{})
	assert.Equal(t, errorbank.KindForbidden, kindOf(err))

	_, err = f.svc.Get(ctx, auth.Anonymous(), alice.AccountID)
	assert.Equal(t, errorbank.KindUnauthorized, kindOf(err))

	err = f.svc.ResetPassword(ctx, alice, alice.AccountID, "another1")
	assert.Equal(t, errorbank.KindForbidden, kindOf(err))
}

func TestAdminListGetUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "boss")
	alice := f.register(t, "alice").Account
	f.register(t, "bob")

	users, err := f.svc.List(ctx, admin, ListFilter{Role: "user"})
	require.NoError(t, err)
	assert.Equal(t, 2, users.Total)

	found, err := f.svc.List(ctx, admin, ListFilter{Keyword: "ALI"})
	require.NoError(t, err)
	require.Equal(t, 1, found.Total)
	assert.Equal(t, "alice", found.Items[0].Username)

	_, err = f.svc.List(ctx, admin, ListFilter{Role: "barista"})
	assert.Equal(t, errorbank.KindValidation, kindOf(err))

	profile, err := f.svc.Get(ctx, admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Account.Username)

	_, err = f.svc.Get(ctx, admin, 999)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))

	promoted, err := f.svc.Update(ctx, admin, alice.ID, AdminPatch{Role: strPtr("admin")})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, promoted.Role)

	_, err = f.svc.Update(ctx, admin, alice.ID, AdminPatch{Role: strPtr("owner")})
	assert.Equal(t, errorbank.KindValidation, kindOf(err))
}

func TestLastAdminIsProtected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.admin(t, "boss")
	deputy := f.admin(t, "deputy")

	_, err := f.svc.Update(ctx, deputy, boss.AccountID, AdminPatch{Role: strPtr("user")})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, deputy, deputy.AccountID, AdminPatch{Role: strPtr("user")})
	assert.Equal(t, errorbank.KindConflict, kindOf(err))

	_, err = f.svc.ToggleActive(ctx, deputy, deputy.AccountID)
	assert.Equal(t, errorbank.KindConflict, kindOf(err))

	err = f.svc.Delete(ctx, deputy, deputy.AccountID)
	assert.Equal(t, errorbank.KindConflict, kindOf(err))
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "boss")
	alice := f.register(t, "alice").Account
	bob := f.register(t, "bob").Account

	now := time.Now().UTC()
	order := &entity.Order{
		AccountID: bob.ID, Number: "CO202601010001", Status: entity.OrderStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}
	_, err := f.conns.Writer.NewInsert().Model(order).Exec(ctx)
	require.NoError(t, err)

	err = f.svc.Delete(ctx, admin, bob.ID)
	assert.Equal(t, errorbank.KindConflict, kindOf(err))

	require.NoError(t, f.svc.Delete(ctx, admin, alice.ID))
	_, err = f.svc.Get(ctx, admin, alice.ID)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))

	err = f.svc.Delete(ctx, admin, alice.ID)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "boss")
	alice := f.register(t, "alice").Account

	err := f.svc.ResetPassword(ctx, admin, alice.ID, "12")
	assert.Equal(t, errorbank.KindValidation, kindOf(err))

	require.NoError(t, f.svc.ResetPassword(ctx, admin, alice.ID, "reset-pass"))
	_, err = f.svc.Login(ctx, "alice", "reset-pass")
	assert.NoError(t, err)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "boss")
	alice := f.register(t, "alice").Account
	f.register(t, "bob")

	old := time.Now().UTC().AddDate(0, 0, -30)
	require.NoError(t, repo.NewRepository(f.conns).Create(ctx, &entity.Account{
		Username: "regular", Email: "regular@example.com", PasswordHash: "x",
		Role: entity.RoleUser, IsActive: true, CreatedAt: old, UpdatedAt: old,
	}))

	now := time.Now().UTC()
	_, err := f.conns.Writer.NewInsert().Model(&entity.Order{
		AccountID: alice.ID, Number: "CO202601010001", Status: entity.OrderStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}).Exec(ctx)
	require.NoError(t, err)

	_, err = f.svc.Statistics(ctx, auth.NewCaller(alice))
	assert.Equal(t, errorbank.KindForbidden, kindOf(err))

	stats, err := f.svc.Statistics(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, repo.Statistics{
		Total:       4,
		Admins:      1,
		Users:       3,
		NewToday:    3,
		NewThisWeek: 3,
		WithOrders:  1,
	}, stats)
}
