package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/Additional-Code/brewline/internal/config"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Hasher hashes and verifies account passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher using the configured bcrypt cost.
func NewHasher(cfg config.Config) *Hasher {
	return &Hasher{cost: cfg.Auth.BcryptCost}
}

// NewHasherWithCost builds a Hasher with an explicit cost.
func NewHasherWithCost(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Malformed hashes never match.
func (h *Hasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
