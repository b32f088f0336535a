package account

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/codes"

	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
)

// RevokedTokens is the durable record of signed-out token ids.
type RevokedTokens struct {
	writer bun.IDB
	reader bun.IDB
}

// NewRevokedTokens wires the revoked token table.
func NewRevokedTokens(conns *database.Connections) *RevokedTokens {
	return &RevokedTokens{writer: conns.Writer, reader: conns.Reader}
}

// Add records jti as revoked until until and drops rows that expired before now.
// Revoking the same id twice is not an error.
func (r *RevokedTokens) Add(ctx context.Context, jti string, until, now time.Time) error {
	ctx, span := repoTracer.Start(ctx, "RevokedTokens.Add")
	defer span.End()

	row := &entity.RevokedToken{JTI: jti, ExpiresAt: until.UTC(), CreatedAt: now.UTC()}
	if _, err := r.writer.NewInsert().Model(row).Ignore().Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}

	_, err := r.writer.NewDelete().
		Model((*entity.RevokedToken)(nil)).
		Where("expires_at < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "purge failed")
		return err
	}
	return nil
}

// Contains reports whether jti is revoked at now.
func (r *RevokedTokens) Contains(ctx context.Context, jti string, now time.Time) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "RevokedTokens.Contains")
	defer span.End()

	found, err := r.reader.NewSelect().
		Model((*entity.RevokedToken)(nil)).
		Where("rt.jti = ?", jti).
		Where("rt.expires_at >= ?", now.UTC()).
		Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return false, err
	}
	return found, nil
}
