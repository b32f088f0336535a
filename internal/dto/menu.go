package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/brewline/internal/entity"
)

// MenuItemRequest is the body of POST /menu and PUT /menu/:id. Absent fields are left
// unchanged on update.
type MenuItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	ImageURL    *string          `json:"image_url"`
	IsAvailable *bool            `json:"is_available"`
	IsPopular   *bool            `json:"is_popular"`
	Tags        *[]string        `json:"tags"`
}

// MenuItemResponse represents a catalog entry.
type MenuItemResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsAvailable bool      `json:"is_available"`
	IsPopular   bool      `json:"is_popular"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewMenuItemResponse converts a menu item.
func NewMenuItemResponse(item *entity.MenuItem) MenuItemResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return MenuItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Price:       Money(item.Price),
		Category:    item.Category,
		ImageURL:    item.ImageURL,
		IsAvailable: item.IsAvailable,
		IsPopular:   item.IsPopular,
		Tags:        tags,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// NewMenuItemResponses converts a slice of menu items.
func NewMenuItemResponses(items []entity.MenuItem) []MenuItemResponse {
	out := make([]MenuItemResponse, 0, len(items))
	for i := range items {
		out = append(out, NewMenuItemResponse(&items[i]))
	}
	return out
}
