package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Account is a registered user identity.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID           int64     `bun:",pk,autoincrement" json:"id"`
	Username     string    `bun:"username,notnull,unique" json:"username"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role"`
	Phone        string    `bun:"phone,nullzero" json:"phone,omitempty"`
	IsActive     bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
