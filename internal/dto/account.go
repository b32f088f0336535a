package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/brewline/internal/entity"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// LoginRequest is the body of POST /auth/login. Username may hold an email address.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login returns whichever identifier was supplied.
func (r LoginRequest) Login() string {
	if r.Username != "" {
		return r.Username
	}
	return r.Email
}

// RefreshRequest is the optional body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ProfileRequest is the body of PUT /auth/profile.
type ProfileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

// AdminAccountRequest is the body of PUT /users/:id.
type AdminAccountRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ResetPasswordRequest is the body of POST /users/:id/reset-password.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// AccountResponse represents an account without credentials.
type AccountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileResponse is an account with its order summary.
type ProfileResponse struct {
	AccountResponse
	OrderCount int64  `json:"order_count"`
	TotalSpent string `json:"total_spent"`
}

// AccountStatisticsResponse is the body of GET /users/statistics.
type AccountStatisticsResponse struct {
	TotalUsers    int `json:"total_users"`
	AdminUsers    int `json:"admin_users"`
	RegularUsers  int `json:"regular_users"`
	TodayNewUsers int `json:"today_new_users"`
	WeekNewUsers  int `json:"week_new_users"`
	ActiveUsers   int `json:"active_users"`
}

// SessionResponse is returned on register and login.
type SessionResponse struct {
	Account      AccountResponse `json:"user"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
}

// NewAccountResponse converts an account.
func NewAccountResponse(account *entity.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		Username:  account.Username,
		Email:     account.Email,
		Role:      string(account.Role),
		Phone:     account.Phone,
		IsActive:  account.IsActive,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

// NewAccountResponses converts a slice of accounts.
func NewAccountResponses(accounts []entity.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewAccountResponse(&accounts[i]))
	}
	return out
}

// NewProfileResponse converts an account with its order summary.
func NewProfileResponse(account *entity.Account, orderCount int64, totalSpent decimal.Decimal) ProfileResponse {
	return ProfileResponse{
		AccountResponse: NewAccountResponse(account),
		OrderCount:      orderCount,
		TotalSpent:      Money(totalSpent),
	}
}
