package auth

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/brewline/internal/cache"
	accountrepo "github.com/Additional-Code/brewline/internal/repository/account"
)

// Module provides hashing, tokens and caller resolution to Fx.
var Module = fx.Provide(
	NewHasher,
	NewTokens,
	func(tokens *accountrepo.RevokedTokens) cache.Ledger { return tokens },
	NewRevocations,
	func(repo *accountrepo.Repository) AccountFinder { return repo },
	NewResolver,
)
