package account

import "go.uber.org/fx"

// Module provides the account repository and the revoked token table to Fx.
var Module = fx.Provide(NewRepository, NewRevokedTokens)
