package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/entity"
	accountsvc "github.com/Additional-Code/brewline/internal/service/account"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// Module provides the Seeder.
var Module = fx.Provide(New)

// Seeder loads sample data for local and demo setups. Every step is idempotent.
type Seeder struct {
	db       *bun.DB
	accounts *accountsvc.Service
	logger   *zap.Logger
	now      func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, accounts *accountsvc.Service, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, accounts: accounts, logger: logger, now: time.Now}
}

type sampleItem struct {
	name        string
	price       string
	description string
	category    string
	image       string
	popular     bool
	tags        []string
}

var sampleMenu = []sampleItem{
	{"Espresso", "3.50", "Strong and bold Italian coffee", "Hot Coffee", "/images/espresso.jpg", true, []string{"classic"}},
	{"Cappuccino", "4.50", "Espresso with steamed milk foam", "Hot Coffee", "/images/cappuccino.jpg", true, []string{"milk"}},
	{"Latte", "4.00", "Smooth espresso with steamed milk", "Hot Coffee", "/images/latte.jpg", false, []string{"milk"}},
	{"Iced Coffee", "3.75", "Refreshing cold brewed coffee", "Cold Coffee", "/images/iced-coffee.jpg", false, []string{"cold"}},
	{"Croissant", "2.50", "Buttery French pastry", "Pastries", "/images/croissant.jpg", false, []string{"bakery"}},
}

// Menu inserts the sample catalog items whose names are not present yet.
func (s *Seeder) Menu(ctx context.Context) (int, error) {
	var existing []string
	if err := s.db.NewSelect().Model((*entity.MenuItem)(nil)).Column("name").Scan(ctx, &existing); err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		present[name] = struct{}{}
	}

	now := s.now().UTC()
	var items []entity.MenuItem
	for _, sample := range sampleMenu {
		if _, ok := present[sample.name]; ok {
			continue
		}
		items = append(items, entity.MenuItem{
			Name:        sample.name,
			Description: sample.description,
			Price:       decimal.RequireFromString(sample.price),
			Category:    sample.category,
			ImageURL:    sample.image,
			IsAvailable: true,
			IsPopular:   sample.popular,
			Tags:        sample.tags,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if len(items) == 0 {
		s.logger.Info("menu already seeded")
		return 0, nil
	}
	if _, err := s.db.NewInsert().Model(&items).Exec(ctx); err != nil {
		return 0, err
	}
	s.logger.Info("seeded menu", zap.Int("count", len(items)))
	return len(items), nil
}

// Admin creates an admin account unless the username or email is already taken.
// It reports whether an account was created.
func (s *Seeder) Admin(ctx context.Context, req accountsvc.RegisterRequest) (bool, error) {
	account, err := s.accounts.CreateAdmin(ctx, req)
	if errorbank.Is(err, errorbank.KindConflict) {
		s.logger.Info("admin account already present", zap.String("username", req.Username))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("seeded admin account", zap.Int64("id", account.ID), zap.String("username", account.Username))
	return true, nil
}
