// Package dbtest opens throwaway SQLite databases carrying the application schema.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
)

// New returns connections to a private in-memory database with every table created.
// The pool holds a single connection, so code running inside a transaction must only
// use the transaction handle.
func New(t testing.TB) *database.Connections {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1&_busy_timeout=5000", uuid.NewString())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, CreateSchema(context.Background(), db))
	return &database.Connections{Writer: db, Reader: db}
}

// CreateSchema creates the application tables from the entity models.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []struct {
		model       any
		foreignKeys []string
	}{
		{model: (*entity.Account)(nil)},
		{model: (*entity.MenuItem)(nil)},
		{
			model:       (*entity.Order)(nil),
			foreignKeys: []string{`("account_id") REFERENCES "accounts" ("id") ON DELETE RESTRICT`},
		},
		{
			model: (*entity.OrderLine)(nil),
			foreignKeys: []string{
				`("order_id") REFERENCES "orders" ("id") ON DELETE CASCADE`,
				`("menu_id") REFERENCES "menu_items" ("id") ON DELETE RESTRICT`,
			},
		},
		{model: (*entity.OrderSequence)(nil)},
		{model: (*entity.RevokedToken)(nil)},
	}

	for _, table := range tables {
		q := db.NewCreateTable().Model(table.model).IfNotExists()
		for _, fk := range table.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table %T: %w", table.model, err)
		}
	}
	return nil
}
