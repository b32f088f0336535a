package account

import "go.uber.org/fx"

// Module wires HTTP account handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
