package auth

import "github.com/Additional-Code/brewline/internal/entity"

// Caller is the identity a request acts as. The zero value is anonymous.
type Caller struct {
	AccountID int64
	Role      entity.Role
}

// Anonymous returns the unauthenticated caller.
func Anonymous() Caller {
	return Caller{}
}

// NewCaller builds a caller for a resolved account.
func NewCaller(account *entity.Account) Caller {
	if account == nil {
		return Anonymous()
	}
	return Caller{AccountID: account.ID, Role: account.Role}
}

// IsAuthenticated reports whether the caller resolved to an account.
func (c Caller) IsAuthenticated() bool {
	return c.AccountID != 0
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.IsAuthenticated() && c.Role == entity.RoleAdmin
}

// CanAccess reports whether the caller may act on a resource owned by ownerID.
func (c Caller) CanAccess(ownerID int64) bool {
	return c.IsAdmin() || (c.IsAuthenticated() && c.AccountID == ownerID)
}
