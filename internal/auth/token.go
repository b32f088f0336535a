package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Additional-Code/brewline/internal/config"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ErrInvalidToken covers every reason a bearer token is rejected.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. Subject carries the account id.
type Claims struct {
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// AccountID returns the subject as an account id.
func (c *Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenPair is returned on login and registration.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokens builds a token service from the auth configuration.
func NewTokens(cfg config.Config) *Tokens {
	return &Tokens{
		secret:     []byte(cfg.Auth.JWTSecret),
		issuer:     cfg.Auth.Issuer,
		accessTTL:  cfg.Auth.AccessTokenTTL,
		refreshTTL: cfg.Auth.RefreshTokenTTL,
		now:        time.Now,
	}
}

// Issue signs a token of the given type for accountID.
func (t *Tokens) Issue(accountID int64, typ TokenType) (string, *Claims, error) {
	ttl := t.accessTTL
	if typ == TokenTypeRefresh {
		ttl = t.refreshTTL
	}
	now := t.now()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Pair issues an access and a refresh token for accountID.
func (t *Tokens) Pair(accountID int64) (TokenPair, error) {
	access, _, err := t.Issue(accountID, TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := t.Issue(accountID, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return t.Describe(access, refresh), nil
}

// Describe wraps already issued tokens in a TokenPair.
func (t *Tokens) Describe(access, refresh string) TokenPair {
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(t.accessTTL / time.Second),
	}
}

// Parse verifies signature, issuer, expiry and type, returning the claims.
func (t *Tokens) Parse(raw string, want TokenType) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != want || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	return claims, nil
}
