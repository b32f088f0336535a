package account

import "go.uber.org/fx"

// Module exposes the account service to Fx.
var Module = fx.Provide(NewService)
