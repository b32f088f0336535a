package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/database"
)

//go:embed sql
var migrations embed.FS

// Module provides the Migrator.
var Module = fx.Provide(New)

// Migrator applies the embedded SQL migrations for the configured dialect.
type Migrator struct {
	db     *sql.DB
	dir    string
	logger *zap.Logger
}

// New constructs a goose-backed migrator.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return nil, err
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: logger.Sugar()})

	return &Migrator{
		db:     conns.Writer.DB,
		dir:    "sql/" + dialect,
		logger: logger,
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}
	m.logger.Info("migrations applied")
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		if err := goose.DownToContext(ctx, m.db, m.dir, 0); err != nil && !isNoMigrationErr(err) {
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, m.db, m.dir); err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
	}
	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db)
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pg":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}

type gooseLogger struct {
	logger *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
