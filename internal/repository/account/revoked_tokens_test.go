package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/brewline/internal/database/dbtest"
	"github.com/Additional-Code/brewline/internal/entity"
)

func TestRevokedTokens(t *testing.T) {
	ctx := context.Background()
	conns := dbtest.New(t)
	tokens := NewRevokedTokens(conns)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, tokens.Add(ctx, "short", now.Add(time.Minute), now))
	require.NoError(t, tokens.Add(ctx, "long", now.Add(time.Hour), now))
	require.NoError(t, tokens.Add(ctx, "long", now.Add(time.Hour), now), "revoking twice is allowed")

	found, err := tokens.Contains(ctx, "long", now)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = tokens.Contains(ctx, "missing", now)
	require.NoError(t, err)
	assert.False(t, found)

	later := now.Add(10 * time.Minute)
	found, err = tokens.Contains(ctx, "short", later)
	require.NoError(t, err)
	assert.False(t, found, "expired entries no longer block")

	require.NoError(t, tokens.Add(ctx, "next", later.Add(time.Hour), later))
	n, err := conns.Reader.NewSelect().Model((*entity.RevokedToken)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "expired rows are purged on write")
}
