package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DefaultCategory is assigned to menu items created without a category.
const DefaultCategory = "coffee"

// MenuItem is a sellable catalog entry.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu_items,alias:m"`

	ID          int64           `bun:",pk,autoincrement" json:"id"`
	Name        string          `bun:"name,notnull" json:"name"`
	Description string          `bun:"description,nullzero" json:"description,omitempty"`
	Price       decimal.Decimal `bun:"price,type:decimal(10,2),notnull" json:"price"`
	Category    string          `bun:"category,notnull" json:"category"`
	ImageURL    string          `bun:"image_url,nullzero" json:"image_url,omitempty"`
	IsAvailable bool            `bun:"is_available,notnull" json:"is_available"`
	IsPopular   bool            `bun:"is_popular,notnull" json:"is_popular"`
	Tags        []string        `bun:"tags,type:text" json:"tags"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}
