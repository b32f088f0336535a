package database

import (
	"context"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var txTracer = otel.Tracer("github.com/Additional-Code/brewline/database")

// RunInTx executes fn inside a writer transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (c *Connections) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	ctx, span := txTracer.Start(ctx, "database.RunInTx")
	defer span.End()

	err := c.Writer.RunInTx(ctx, nil, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
	}
	return err
}
