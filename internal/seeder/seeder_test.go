package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/database/dbtest"
	"github.com/Additional-Code/brewline/internal/entity"
	accountrepo "github.com/Additional-Code/brewline/internal/repository/account"
	orderrepo "github.com/Additional-Code/brewline/internal/repository/order"
	accountsvc "github.com/Additional-Code/brewline/internal/service/account"
)

func newSeeder(t *testing.T) *Seeder {
	t.Helper()
	conns := dbtest.New(t)
	accounts := accountrepo.NewRepository(conns)

	store, err := cache.NewMemoryStore(10, time.Minute)
	require.NoError(t, err)
	tokens := auth.NewTokens(config.Config{Auth: config.Auth{
		JWTSecret:       "seed-secret-0123456789",
		Issuer:          "brewline-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: time.Hour,
	}})
	revocations := auth.NewRevocations(store, accountrepo.NewRevokedTokens(conns))

	svc := accountsvc.NewService(accountsvc.Params{
		Repository:  accounts,
		Orders:      orderrepo.NewRepository(conns),
		Hasher:      auth.NewHasherWithCost(4),
		Tokens:      tokens,
		Resolver:    auth.NewResolver(tokens, revocations, accounts, zap.NewNop()),
		Revocations: revocations,
		Logger:      zap.NewNop(),
	})
	return New(conns, svc, zap.NewNop())
}

func TestMenuSeedIsIdempotent(t *testing.T) {
	s := newSeeder(t)
	ctx := context.Background()

	n, err := s.Menu(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleMenu), n)

	n, err = s.Menu(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var items []entity.MenuItem
	require.NoError(t, s.db.NewSelect().Model(&items).Order("name ASC").Scan(ctx))
	require.Len(t, items, len(sampleMenu))
	assert.Equal(t, "Cappuccino", items[0].Name)
	assert.Equal(t, "4.50", items[0].Price.StringFixed(2))
	assert.True(t, items[0].IsAvailable)
}

func TestAdminSeedSkipsExisting(t *testing.T) {
	s := newSeeder(t)
	ctx := context.Background()
	req := accountsvc.RegisterRequest{Username: "admin", Email: "admin@brewline.local", Password: "admin123"}

	created, err := s.Admin(ctx, req)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Admin(ctx, req)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = s.Admin(ctx, accountsvc.RegisterRequest{Username: "x", Email: "bad", Password: "admin123"})
	assert.Error(t, err)
}
