package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// RevokedToken blocks a signed token id until the token would have expired.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rt"`

	JTI       string    `bun:"jti,pk" json:"jti"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
